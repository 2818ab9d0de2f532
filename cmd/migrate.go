package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/jjenkins/readiness/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the schema migrations to the configured database. Every migration
is idempotent, so running this against an up-to-date database is safe.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, _, db := setup()
		defer db.Close()

		applied, err := store.RunMigrations(db, migrationsDir)
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		for _, name := range applied {
			log.Printf("Applied %s", name)
		}
		log.Printf("Database is up to date (%d migrations)", len(applied))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrationsDir, "migrations", "", "Directory of .sql migrations (defaults to the embedded set)")
}

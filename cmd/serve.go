package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/cobra"

	"github.com/jjenkins/readiness/internal/auth"
	"github.com/jjenkins/readiness/internal/export"
	"github.com/jjenkins/readiness/internal/handlers"
	"github.com/jjenkins/readiness/internal/service"
	"github.com/jjenkins/readiness/internal/store"
)

var (
	port          string
	skipMigrate   bool
	migrationsDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the questionnaire web server",
	Long: `Start the web server that stores questionnaire answers and hosts the
admin dashboard. Pending database migrations are applied on startup.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logr, db := setup()
		defer db.Close()

		// An explicit --port wins over PORT
		if !cmd.Flags().Changed("port") {
			port = cfg.Port
		}

		if !skipMigrate {
			applied, err := store.RunMigrations(db, migrationsDir)
			if err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
			logr.Info("migrations applied", slog.Any("files", applied))
		}

		cat := loadCatalog(cfg.CatalogPath)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var blacklist auth.Blacklist
		if cfg.RedisURI != "" {
			client, err := auth.NewRedisClient(ctx, cfg.RedisURI)
			if err != nil {
				log.Fatalf("Failed to connect to redis: %v", err)
			}
			defer client.Close()
			blacklist = auth.NewRedisBlacklist(client)
		} else {
			logr.Warn("REDIS_URI not set, logged out sessions stay valid until they expire")
		}

		if !cfg.AdminConfigured() {
			logr.Warn("ADMIN_USERNAME and ADMIN_PASSWORD not set, admin login is disabled")
		}

		authenticator := auth.NewAuthenticator(auth.Options{
			Username:     cfg.AdminUsername,
			Password:     cfg.AdminPassword,
			PasswordHash: cfg.AdminPasswordHash,
			Secret:       cfg.SessionSecret,
			TTL:          cfg.SessionTTL,
			Blacklist:    blacklist,
		})

		responses := service.NewResponseService(store.NewResponseStore(db), cat, logr)

		app := fiber.New(fiber.Config{
			AppName: "AI Readiness Questionnaire",
		})

		app.Use(logger.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept",
		}))

		handlers.Register(app, handlers.Deps{
			Responses:     responses,
			Exporter:      export.NewExporter(cat, cfg.Location),
			Auth:          authenticator,
			Location:      cfg.Location,
			SecureCookies: cfg.SecureCookies,
			Logger:        logr,
		})

		go func() {
			<-ctx.Done()
			logr.Info("shutting down")
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logr.Error("shutdown failed", slog.String("error", err.Error()))
			}
		}()

		logr.Info("starting server", slog.String("port", port), slog.Int("questions", cat.TotalQuestions()))
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrations", false, "Do not apply migrations on startup")
	serveCmd.Flags().StringVar(&migrationsDir, "migrations", "", "Directory of .sql migrations (defaults to the embedded set)")
}

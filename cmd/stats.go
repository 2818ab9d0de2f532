package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jjenkins/readiness/internal/service"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print questionnaire response statistics",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _, db := setup()
		defer db.Close()

		cat := loadCatalog(cfg.CatalogPath)

		metrics, err := service.NewMetricsService(db, cat).Calculate(context.Background())
		if err != nil {
			log.Fatalf("Failed to calculate metrics: %v", err)
		}

		fmt.Println("=== Response Metrics ===")
		fmt.Printf("Total responses:     %d\n", metrics.TotalResponses)
		fmt.Printf("Completed responses: %d\n", metrics.CompletedResponses)
		fmt.Printf("Average progress:    %.1f%%\n", metrics.AverageProgress)
		fmt.Printf("Total answers:       %d\n", metrics.TotalAnswers)
		fmt.Println()
		fmt.Println("=== Section Coverage ===")
		for _, s := range metrics.Sections {
			fmt.Printf("%2d. %s: %d answers from %d respondents (%.1f%%)\n",
				s.ID, s.Title, s.Answers, s.Respondents, s.AnswerRate)
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "readiness",
	Short: "AI readiness questionnaire service",
	Long: `Collects answers to the AI transformation readiness questionnaire,
tracks each respondent's progress and exports responses for review.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "telos",
	Short: "Goal tracking with automatic action matching",
	Long:  "Telos logs the things you do and figures out which of your goals they advance. Single Go binary, local SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(importCmd)
}

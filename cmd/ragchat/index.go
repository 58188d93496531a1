package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ragchat/internal/service"
)

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Build the vector index from a text file",
	Long: `Splits the file into overlapping passages, embeds them and replaces the
content of the configured vector index. A failed run leaves the previous
index untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := appConfig.CheckCredentials(false); err != nil {
		return err
	}
	index, _, report, err := prepareIndex(cmd.Context(), appConfig, args[0])
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	defer index.Close()
	printReport(cmd, report)
	return nil
}

func printReport(cmd *cobra.Command, report *service.IndexReport) {
	cmd.Printf("Indexed %q: %d passages, %d dimensions in %s\n",
		report.Document, report.Passages, report.Dimension, report.Elapsed.Round(time.Millisecond))
	if report.Summary != "" {
		cmd.Println()
		cmd.Println("Summary:")
		cmd.Println("  " + report.Summary)
	}
}

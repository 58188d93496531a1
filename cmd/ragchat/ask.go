package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
)

var (
	askDoc     string
	askPersona string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question and print its sources",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askDoc, "doc", "", "index this text file before answering")
	askCmd.Flags().StringVar(&askPersona, "persona", "", "answer persona: concise, legal or reader")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if timeout := appConfig.SessionTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := appConfig.CheckCredentials(true); err != nil {
		return err
	}
	persona, gen, err := buildGeneration(appConfig, askPersona)
	if err != nil {
		return err
	}
	index, emb, _, err := prepareIndex(ctx, appConfig, askDoc)
	if err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}
	defer index.Close()

	answerer := buildAnswerer(appConfig, persona, gen, emb, index)
	answer, err := answerer.Answer(ctx, strings.Join(args, " "), nil)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	printAnswer(cmd, answer)
	return nil
}

func printAnswer(cmd *cobra.Command, answer domain.Answer) {
	cmd.Println(answer.Text)
	if len(answer.Sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("Sources:")
	for _, s := range answer.Sources {
		snippet := strings.Join(strings.Fields(s.Text), " ")
		if r := []rune(snippet); len(r) > 100 {
			snippet = string(r[:100]) + "..."
		}
		cmd.Printf("  [%d] passage %d (%.2f) %s\n", s.Rank, s.PassageID, s.Score, snippet)
	}
}

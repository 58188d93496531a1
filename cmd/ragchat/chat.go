package main

import (
	"fmt"
	"io"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/logger"
	"ragchat/internal/session"
	"ragchat/internal/tui"
)

var (
	chatDoc     string
	chatPersona string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive chat about the indexed document",
	Long: `Opens a terminal chat. Questions are answered in the background from the
passages retrieved for each question. Use --doc to index a file first.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatDoc, "doc", "", "index this text file before chatting")
	chatCmd.Flags().StringVar(&chatPersona, "persona", "", "answer persona: concise, legal or reader")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := appConfig.CheckCredentials(true); err != nil {
		return err
	}
	persona, gen, err := buildGeneration(appConfig, chatPersona)
	if err != nil {
		return err
	}
	index, emb, report, err := prepareIndex(ctx, appConfig, chatDoc)
	if err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}
	defer index.Close()
	if !index.IsReady() {
		logger.Warn("the index is empty; run `ragchat index <file>` or pass --doc")
	}

	answerer := buildAnswerer(appConfig, persona, gen, emb, index)
	manager := session.NewManager(answerer, session.Options{Timeout: appConfig.SessionTimeout()})
	defer manager.CloseAll()
	sess := manager.Create()

	title := appConfig.SourceTitle
	summary := "Using the existing index."
	if report != nil {
		summary = report.Summary
		if title == "" {
			title = report.Document
		}
	}

	// the TUI owns the terminal; logs go to a file in verbose mode
	if logger.IsVerbose() {
		f, err := tea.LogToFile(filepath.Join(".", "ragchat.log"), "ragchat")
		if err != nil {
			return err
		}
		defer f.Close()
		logger.SetOutput(f)
	} else {
		logger.SetOutput(io.Discard)
	}

	m := tui.New(sess, tui.Options{Title: title, Summary: summary, SampleQuestions: appConfig.SampleQuestions})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return nil
}

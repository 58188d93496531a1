package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

var (
	cfgPath string
	verbose bool

	// loaded by the root PersistentPreRunE
	appConfig *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Chat with a document using retrieval-augmented generation",
	Long: `ragchat splits a text document into overlapping passages, embeds them into a
vector index and answers questions about the document with a language model,
grounding every answer in the passages it retrieved.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		logger.SetVerbose(verbose)
		cfg, path, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		logger.Debug("config loaded from %s", path)
		appConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/ragchat/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")
}

func loadConfig(path string) (*config.AppConfig, string, error) {
	if path == "" {
		return config.LoadDefault()
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scrapechat/internal/config"
)

var cfgFile string

// Execute is the main entry point called from main.go.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scrapechat",
		Short: "Chat with a local language model about web pages",
		Long: "scrapechat scrapes a web page and lets you ask a language model about it.\n" +
			"Run `scrapechat serve` for the backend and `scrapechat chat` for the terminal client.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $SCRAPECHAT_CONFIG)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newModelsCmd())
	return rootCmd
}

// loadConfig resolves --config, then SCRAPECHAT_CONFIG, then built-in defaults.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("SCRAPECHAT_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scrapechat/internal/client"
)

func newModelsCmd() *cobra.Command {
	var backendURL string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the backend can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if backendURL != "" {
				cfg.Client.BaseURL = backendURL
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			names, err := client.New(cfg.Client.BaseURL, 0).Models(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&backendURL, "backend", "b", "", "backend API base URL (overrides client.base_url)")
	return cmd
}

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"scrapechat/internal/client"
	"scrapechat/internal/config"
	"scrapechat/internal/redis"
	"scrapechat/internal/session"
	"scrapechat/internal/storage"
	"scrapechat/internal/tui"
)

func newChatCmd() *cobra.Command {
	var (
		backendURL string
		modelName  string
		storeName  string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the terminal chat client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if backendURL != "" {
				cfg.Client.BaseURL = backendURL
			}
			if modelName != "" {
				cfg.Client.Model = modelName
			}
			if storeName != "" {
				cfg.Client.Storage = storeName
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runChat(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&backendURL, "backend", "b", "", "backend API base URL (overrides client.base_url)")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model to use (default: first model reported by the backend)")
	cmd.Flags().StringVar(&storeName, "storage", "", "conversation storage: sqlite3, mysql, redis or none")
	return cmd
}

func runChat(ctx context.Context, cfg *config.Config) error {
	persister, closeFn, err := openPersister(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	backend := client.New(cfg.Client.BaseURL, 0)

	var repl *tui.REPL
	store := session.NewStore(session.Options{
		Scraper:   backend,
		Querier:   backend,
		Persister: persister,
		Model:     cfg.Client.Model,
		OnStatus: func(s string) {
			if repl != nil {
				repl.Status(s)
			}
		},
	})
	if err := store.Load(ctx); err != nil {
		log.Printf("restore conversations: %v", err)
	}

	opts := tui.Options{}
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		opts.Markdown = true
		if w, _, err := term.GetSize(fd); err == nil {
			opts.Width = w
		}
	}
	repl = tui.New(store, backend, os.Stdin, os.Stdout, opts)
	return repl.Run(ctx)
}

// openPersister returns the configured conversation persister and its cleanup.
func openPersister(cfg *config.Config) (session.Persister, func(), error) {
	noop := func() {}
	kind := strings.ToLower(cfg.Client.Storage)
	switch kind {
	case "none", "":
		return nil, noop, nil
	case "redis":
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("create redis client: %w", err)
		}
		return storage.NewConversationPersister(redis.NewStateBackend(rdb), ""), func() { rdb.Close() }, nil
	default:
		db, err := storage.Open(kind, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("open database: %w", err)
		}
		if err := storage.Migrate(db, kind); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("migrate database: %w", err)
		}
		return storage.NewConversationPersister(storage.NewStateStore(db, kind), ""), func() { db.Close() }, nil
	}
}

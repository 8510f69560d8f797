package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"scrapechat/internal/api"
	"scrapechat/internal/config"
	"scrapechat/internal/llm"
	"scrapechat/internal/redis"
	"scrapechat/internal/scraper"
	"scrapechat/internal/worker"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scrape and model backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides server.address)")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	var cache scraper.Cache
	ttl := time.Duration(cfg.Scraper.CacheTTL) * time.Minute
	if ttl > 0 {
		cache = scraper.NewMemoryCache(ttl)
		if cfg.Scraper.UseRedis {
			rdb, err := redis.NewRedisClient(cfg)
			if err != nil {
				log.Printf("redis unavailable, using in-memory scrape cache: %v", err)
			} else {
				defer rdb.Close()
				cache = scraper.NewRedisCache(rdb, ttl)
			}
		}
	}

	modelService, err := llm.NewService(cfg.Provider)
	if err != nil {
		return err
	}
	log.Printf("provider: %s (%s)", cfg.Provider.Name, cfg.Provider.BaseURL)

	dispatcher := worker.NewDispatcher(worker.Config{
		MinWorkers:  cfg.Worker.MinWorkers,
		MaxWorkers:  cfg.Worker.MaxWorkers,
		QueueSize:   cfg.Worker.QueueSize,
		IdleTimeout: time.Duration(cfg.Worker.IdleTimeout) * time.Second,
	})
	defer dispatcher.Close()

	handlers := api.NewHandler(scraper.New(cfg.Scraper, cache), modelService, dispatcher)
	router := gin.Default()
	handlers.RegisterRoutes(router, cfg.Server.AllowedOrigins)

	srv := &http.Server{Addr: cfg.Server.Address, Handler: router}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Server.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpiface "github.com/sawpanic/alphatilt/internal/interfaces/http"
	"github.com/sawpanic/alphatilt/internal/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			registry := metrics.NewRegistry()
			server := httpiface.NewServer(httpiface.Config{
				Addr:           cfg.HTTP.Addr,
				RateLimitRPS:   cfg.HTTP.RateLimitRPS,
				RateLimitBurst: cfg.HTTP.RateLimitBurst,
			}, store, registry.Gatherer())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Info().Msg("shutting down status server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}
}

package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/clock"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/feed"
	"github.com/gosuda/boardsync/internal/server"
	"github.com/gosuda/boardsync/internal/store/postgres"
	redisstore "github.com/gosuda/boardsync/internal/store/redis"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the board API and change feed server",
		Long: `Run the HTTP server that persists board objects in PostgreSQL and fans
changes out to every subscriber through Redis.

Configuration comes from BOARDSYNC_* environment variables, optionally on
top of a YAML file named by BOARDSYNC_CONFIG.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, rootOpts *rootOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(rootOpts, cfg.Log)

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	boards := feed.NewService(store.Objects(), pubsub, clock.Real(), cfg.Sync.BatchLimit)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(ctx, cfg, boards)

	go func() {
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

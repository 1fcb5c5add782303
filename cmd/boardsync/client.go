package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/clock"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/objects"
	"github.com/gosuda/boardsync/internal/remote"
	"github.com/gosuda/boardsync/internal/session"
	"github.com/gosuda/boardsync/internal/syncer"
)

// clientStack is one local board replica synced against a remote server.
type clientStack struct {
	board   *objects.Board
	engine  *syncer.Engine
	session *session.Session
}

func loadClient(rootOpts *rootOptions) (*config.Config, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	setupLogging(rootOpts, cfg.Log)

	if cfg.Client.Token == "" {
		return nil, errors.New("BOARDSYNC_TOKEN is required")
	}
	return cfg, nil
}

func newClientStack(cfg *config.Config) (*clientStack, error) {
	identity := auth.NewTokenIdentity(cfg.Client.Token)
	userID, err := identity.CurrentUser()
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	clk := clock.Real()
	rem := remote.NewClient(cfg.Client.ServerURL, identity.Token(), cfg.Sync.BatchLimit, nil)
	board := objects.NewBoard(userID, clk)
	engine := syncer.NewEngine(rem, board, clk, syncer.Config{
		FlushInterval: cfg.Sync.FlushInterval,
		CommitTimeout: cfg.Sync.CommitTimeout,
		BackoffBase:   cfg.Sync.BackoffBase,
		BackoffMax:    cfg.Sync.BackoffMax,
		EchoTTL:       cfg.Sync.EchoTTL,
	})

	return &clientStack{
		board:   board,
		engine:  engine,
		session: session.New(engine, board, identity, cfg.Sync.LeaveTimeout),
	}, nil
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

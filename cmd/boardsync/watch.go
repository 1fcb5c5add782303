package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/syncer"
)

func newWatchCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <board-id>",
		Short: "Print a board's objects and every change to them",
		Long: `Open a board and print its snapshot, then one JSON line per remote
change, until interrupted.

Example:
  BOARDSYNC_TOKEN=$(boardsync token --user alice) boardsync watch retro`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), rootOpts, args[0], cmd.OutOrStdout())
		},
	}
}

// changeLine is one line of watch output.
type changeLine struct {
	Snapshot bool               `json:"snapshot,omitempty"`
	Events   []domain.SyncEvent `json:"events"`
}

func runWatch(ctx context.Context, rootOpts *rootOptions, boardID string, out io.Writer) error {
	cfg, err := loadClient(rootOpts)
	if err != nil {
		return err
	}
	stack, err := newClientStack(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(ctx)
	defer cancel()

	enc := json.NewEncoder(out)
	lines := make(chan changeLine, 64)

	unsubRemote := stack.engine.OnRemoteChange(func(c syncer.RemoteChange) {
		if len(c.Events) == 0 && !c.Snapshot {
			return
		}
		select {
		case lines <- changeLine{Snapshot: c.Snapshot, Events: c.Events}:
		default:
			log.Warn().Int("events", len(c.Events)).Msg("watch: output behind, dropping change")
		}
	})
	defer unsubRemote()

	unsubStatus := stack.engine.ObserveStatus(func(s syncer.Status) {
		log.Info().Str("status", string(s)).Msg("watch: connection")
	})
	defer unsubStatus()

	if err := stack.session.Enter(ctx, boardID); err != nil {
		return err
	}
	defer func() {
		if leaveErr := stack.session.Leave(context.WithoutCancel(ctx)); leaveErr != nil {
			log.Warn().Err(leaveErr).Msg("watch: leave")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case l := <-lines:
			if l.Events == nil {
				l.Events = []domain.SyncEvent{}
			}
			if err := enc.Encode(l); err != nil {
				return err
			}
		}
	}
}

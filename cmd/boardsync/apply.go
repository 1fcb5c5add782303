package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/domain"
)

type applyOptions struct {
	*rootOptions
	File string
}

func newApplyCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &applyOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <board-id>",
		Short: "Apply intents to a board",
		Long: `Open a board, apply intents read as JSON, flush, and leave. Input is a
single intent object or an array of them, each with a "kind" field.

Example:
  echo '{"kind":"create-sticky","x":100,"y":100,"text":"hello"}' | boardsync apply retro
  boardsync apply retro -f moves.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if opts.File != "" && opts.File != "-" {
				f, err := os.Open(opts.File)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runApply(cmd.Context(), opts.rootOptions, args[0], in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "-", "intent file, - for stdin")

	return cmd
}

func runApply(ctx context.Context, rootOpts *rootOptions, boardID string, in io.Reader, out io.Writer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read intents: %w", err)
	}
	intents, err := decodeIntents(raw)
	if err != nil {
		return err
	}

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

	if err := stack.session.Enter(ctx, boardID); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	failed := 0
	for _, intent := range intents {
		res := stack.board.ApplyLocal(intent)
		if !res.OK {
			failed++
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}

	// Leave flushes the buffered writes before disconnecting.
	if err := stack.session.Leave(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	log.Info().Int("applied", len(intents)-failed).Int("rejected", failed).Str("board_id", boardID).Msg("apply: done")
	if failed > 0 {
		return fmt.Errorf("%d of %d intents rejected", failed, len(intents))
	}
	return nil
}

// decodeIntents accepts one intent object or an array of them.
func decodeIntents(raw []byte) ([]domain.Intent, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("no intents: %w", domain.ErrInvalidIntent)
	}

	var items []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode intents: %w", err)
		}
	} else {
		items = []json.RawMessage{raw}
	}

	intents := make([]domain.Intent, 0, len(items))
	for i, item := range items {
		in, err := domain.DecodeIntent(item)
		if err != nil {
			return nil, fmt.Errorf("intent %d: %w", i, err)
		}
		intents = append(intents, in)
	}
	return intents, nil
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/config"
)

type tokenOptions struct {
	*rootOptions
	UserID string
	Role   string
	TTL    time.Duration
}

func newTokenCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &tokenOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		Long: `Issue a bearer token signed with BOARDSYNC_JWT_SECRET.

Example:
  boardsync token --user alice --role collaborator
  boardsync token --user bot --role viewer --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogging(opts.rootOptions, cfg.Log)

			ttl := opts.TTL
			if ttl <= 0 {
				ttl = cfg.JWT.TokenTTL
			}

			tok, err := auth.IssueToken(cfg.JWT.Secret, opts.UserID, opts.Role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id carried by the token (required)")
	cmd.Flags().StringVar(&opts.Role, "role", auth.RoleCollaborator, "board role: owner|collaborator|viewer")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "token lifetime (default BOARDSYNC_JWT_TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/config"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	LogLevel  string
	LogFormat string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "boardsync",
		Short:         "Real-time collaborative board sync",
		Long:          "Server and client tools for boards whose objects sync between every open copy.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides BOARDSYNC_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format json|text (overrides BOARDSYNC_LOG_FORMAT)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newApplyCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

// setupLogging initializes the global zerolog logger. Flags win over config.
func setupLogging(opts *rootOptions, cfg config.LogConfig) {
	levelName := cfg.Level
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	format := cfg.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}
	// Logs go to stderr so client commands can print data on stdout.
	if format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

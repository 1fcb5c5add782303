package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("boardsync failed")
		os.Exit(1)
	}
}

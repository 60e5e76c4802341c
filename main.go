package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/patrikhermansson/hanndb/cmd"
	"github.com/rs/zerolog/log"
)

// main is the entry point of the hanndb CLI.
// Logging is configured by the core package from DEBUG_HANNDB, and an interrupt
// signal cancels the running command.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if ctx.Err() != nil {
			log.Warn().Msg("Interrupt signal received. Exiting...")
		}
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

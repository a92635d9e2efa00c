package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"dg-agenda/internal/logger"
	"dg-agenda/internal/remote"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr, openDriver: remote.Open}
	err := NewRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		log := logger.Console(os.Stderr, zerolog.ErrorLevel)
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

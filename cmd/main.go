package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	app := &cli.Command{
		Name:     "ppl",
		Usage:    "Filter, sort and prune Spotify playlists",
		Version:  "0.1.0",
		Flags:    rootFlags(),
		Before:   runner.Before,
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
		case errors.Is(err, context.Canceled):
			logger.Info("interrupted")
		default:
			runner.Close()
			logger.Fatalf("application error: %v", err)
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/commands"
	"github.com/makeitchaccha/audiobook/audiobook/generation"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	app := commands.NewApp(Version, Commit)
	app.SetupLogger = setupLogger

	if err := commands.Execute(context.Background(), app, os.Args[1:]); err != nil {
		slog.Error("Command failed", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error kinds to distinct exit statuses for scripts.
func exitCode(err error) int {
	switch {
	case errors.Is(err, audiobook.ErrValidation):
		return 2
	case errors.Is(err, audiobook.ErrConfig):
		return 3
	case errors.Is(err, audiobook.ErrProjectIO):
		return 4
	case errors.Is(err, audiobook.ErrEngine):
		return 5
	case errors.Is(err, audiobook.ErrFileBusy), errors.Is(err, generation.ErrBusy):
		return 6
	case errors.Is(err, audiobook.ErrExport):
		return 7
	default:
		return 1
	}
}

func setupLogger(cfg audiobook.LogConfig) error {
	opts := &slog.HandlerOptions{
		AddSource: cfg.AddSource,
		Level:     cfg.Level,
	}

	var sHandler slog.Handler
	switch cfg.Format {
	case "json":
		sHandler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		sHandler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q: %w", cfg.Format, audiobook.ErrConfig)
	}
	slog.SetDefault(slog.New(sHandler))
	return nil
}

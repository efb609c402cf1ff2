package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/makeitchaccha/audiobook/audiobook/generation"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
)

// newRunner wires the scheduler and the regenerator to the configured
// engines and project library.
func newRunner(ctx context.Context, app *App) (generation.Worker, error) {
	engines, err := app.Engines(ctx)
	if err != nil {
		return nil, err
	}
	_, runs, err := app.Library(ctx)
	if err != nil {
		return nil, err
	}

	regenerator := generation.NewRegenerator(engines, runs)
	if app.Config.Generation.RegenRetries > 0 {
		regenerator.RemoveRetries = app.Config.Generation.RegenRetries
	}
	if app.Config.Generation.RegenBackoff > 0 {
		regenerator.RemoveBackoff = app.Config.Generation.RegenBackoff
	}
	return generation.NewRunner(generation.NewScheduler(engines, runs), regenerator), nil
}

// stopOnSignal asks worker to stop on SIGINT or SIGTERM until the returned
// function is called.
func stopOnSignal(worker generation.Worker) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case s := <-signals:
			slog.Info("Received signal, stopping after the current unit", "signal", s)
			worker.Stop()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
	}
}

// progressObserver prints worker events.
type progressObserver struct {
	generation.NoOpObserver

	mu     sync.Mutex
	w      io.Writer
	last   int
	result generation.Result
	path   string
}

func (o *progressObserver) OnProgress(percent int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if percent != o.last {
		fmt.Fprintf(o.w, "%3d%%\n", percent)
		o.last = percent
	}
}

func (o *progressObserver) OnGenerationFinished(result generation.Result, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.result = result
}

func (o *progressObserver) OnRegenDone(path string, speakerID speaker.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.path = path
}

func newGenerateCmd(app *App) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Synthesize the audio of the project",
		Long: `Synthesize the audio of the project, grouped by speaker.

Modes:
  fresh       voice every unit
  continue    voice the units without audio
  regen-only  voice the units flagged with mark-regen

Interrupting the command stops after the unit in progress; a later
continue run picks up where it left off.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := generation.ParseMode(mode)
			if err != nil {
				return err
			}
			p, err := app.Project()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			worker, err := newRunner(ctx, app)
			if err != nil {
				return err
			}
			observer := &progressObserver{w: cmd.OutOrStdout(), last: -1}
			worker.AddObserver(observer)

			release := stopOnSignal(worker)
			defer release()
			if err := worker.StartGeneration(ctx, generation.Request{Dir: p.Dir(), Mode: m}); err != nil {
				return err
			}
			if err := worker.Wait(); err != nil {
				return err
			}

			result := observer.result
			status := "finished"
			if result.Stopped {
				status = "stopped"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generation %s: %d/%d units done, %d synthesized, %d failed\n",
				status, result.Done, result.Total, result.Synthesized, result.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(generation.ModeContinue), "fresh, continue or regen-only")
	return cmd
}

func newRegenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "regen <index>",
		Short: "Synthesize a single unit again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			p, err := app.Project()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			worker, err := newRunner(ctx, app)
			if err != nil {
				return err
			}
			observer := &progressObserver{w: cmd.OutOrStdout()}
			worker.AddObserver(observer)

			if err := worker.StartRegeneration(ctx, p.Dir(), i); err != nil {
				return err
			}
			if err := worker.Wait(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Regenerated unit %d: %s\n", i, observer.path)
			return nil
		},
	}
}

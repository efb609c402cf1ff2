// Package export joins the synthesized units of a project into one audiobook
// file, with silence between adjacent units.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/observe"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/wavfile"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Pause between units. Nil uses the project's pause_duration.
	Pause *time.Duration
}

type Result struct {
	Path     string
	Units    int
	Skipped  []int
	Manifest []string
}

type Composer struct {
	Concatenator Concatenator
	Metrics      *observe.Metrics
}

func NewComposer(concatenator Concatenator, metrics *observe.Metrics) *Composer {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Composer{Concatenator: concatenator, Metrics: metrics}
}

// Seconds converts a pause given in seconds.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Export writes the audiobook of the project in dir to
// exported_audiobooks/{project}_audiobook_{k}.{ext}.
func (c *Composer) Export(ctx context.Context, dir string, opts Options) (Result, error) {
	started := time.Now()
	p, err := project.Open(dir)
	if err != nil {
		return Result{}, err
	}

	pause := Seconds(p.Settings().PauseDuration)
	if opts.Pause != nil {
		pause = *opts.Pause
	}
	if pause < 0 {
		return Result{}, fmt.Errorf("pause %s must not be negative: %w", pause, audiobook.ErrValidation)
	}

	if missing := p.Missing(); len(missing) > 0 {
		return Result{}, fmt.Errorf("audio of units %v is missing: %w", missing, audiobook.ErrExport)
	}

	var result Result
	var inputs []string
	for _, u := range p.Units() {
		// audio of an ungenerated unit is stale
		if !u.Generated || u.AudioPath == "" {
			slog.Warn("unit has no current audio, skipping", "index", u.Index, "staleAudio", u.AudioPath)
			result.Skipped = append(result.Skipped, u.Index)
			continue
		}
		path, err := p.AudioPath(u.Index)
		if err != nil {
			return Result{}, err
		}
		inputs = append(inputs, path)
	}
	if len(inputs) == 0 {
		return Result{}, fmt.Errorf("project %s has no audio to export: %w", p.Name(), audiobook.ErrExport)
	}

	format, err := probeAll(ctx, inputs)
	if err != nil {
		return Result{}, err
	}

	silence := p.Path(project.SilenceFile)
	if pause > 0 {
		if err := wavfile.WriteSilence(silence, format, pause); err != nil {
			return Result{}, fmt.Errorf("failed to write %s: %w: %w", silence, audiobook.ErrExport, err)
		}
	}
	result.Manifest = manifest(inputs, silence, pause > 0)
	result.Units = len(inputs)

	outDir := p.Path(project.ExportDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create %s: %w: %w", outDir, audiobook.ErrExport, err)
	}
	out, err := nextOutput(outDir, p.Name(), c.Concatenator.Ext())
	if err != nil {
		return Result{}, err
	}

	slog.Info("exporting audiobook", "project", p.Name(), "units", result.Units, "skipped", len(result.Skipped), "pause", pause, "out", out)
	if err := c.Concatenator.Concat(ctx, result.Manifest, out); err != nil {
		return Result{}, err
	}
	result.Path = out

	c.Metrics.RecordExport(ctx, c.Concatenator.Ext(), time.Since(started))
	return result, nil
}

// probeAll checks every input concurrently and returns the common format.
func probeAll(ctx context.Context, inputs []string) (wavfile.Format, error) {
	infos := make([]wavfile.Info, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := wavfile.Probe(path)
			if err != nil {
				return fmt.Errorf("failed to probe %s: %w: %w", path, audiobook.ErrExport, err)
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, audiobook.ErrExport) {
			err = fmt.Errorf("%w: %w", audiobook.ErrExport, err)
		}
		return wavfile.Format{}, err
	}

	first := infos[0].Format
	for i, info := range infos[1:] {
		if info.Format != first {
			return wavfile.Format{}, fmt.Errorf("%s is %s, expected %s: %w: %w",
				inputs[i+1], info.Format, first, audiobook.ErrExport, wavfile.ErrFormatMismatch)
		}
	}
	return first, nil
}

// manifest interleaves silence between adjacent inputs.
func manifest(inputs []string, silence string, withSilence bool) []string {
	list := make([]string, 0, 2*len(inputs))
	for i, path := range inputs {
		if i > 0 && withSilence {
			list = append(list, silence)
		}
		list = append(list, path)
	}
	return list
}

// nextOutput returns the first unused {name}_audiobook_{k}.{ext} in dir.
func nextOutput(dir, name, ext string) (string, error) {
	for k := 0; ; k++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_audiobook_%d.%s", name, k, ext))
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w: %w", path, audiobook.ErrExport, err)
		}
	}
}

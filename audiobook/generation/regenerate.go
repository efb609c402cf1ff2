package generation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/library"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultRemoveRetries = 10
	DefaultRemoveBackoff = 100 * time.Millisecond
)

type RegenResult struct {
	Index     int
	AudioPath string
	SpeakerID speaker.ID
}

// Regenerator re-synthesizes a single unit with its speaker's current settings.
type Regenerator struct {
	Engines
	Runs library.RunRepository

	RemoveRetries uint64
	RemoveBackoff time.Duration
	// Remove deletes the old audio file. Defaults to os.Remove.
	Remove func(path string) error
}

func NewRegenerator(engines Engines, runs library.RunRepository) *Regenerator {
	if runs == nil {
		runs = library.NopRunRepository{}
	}
	return &Regenerator{
		Engines:       engines,
		Runs:          runs,
		RemoveRetries: DefaultRemoveRetries,
		RemoveBackoff: DefaultRemoveBackoff,
		Remove:        os.Remove,
	}
}

// removeAudio deletes path, retrying while the file is held by another
// process. A missing file is not an error.
func (r *Regenerator) removeAudio(ctx context.Context, path string) error {
	remove := r.Remove
	if remove == nil {
		remove = os.Remove
	}
	backoff := r.RemoveBackoff
	if backoff <= 0 {
		backoff = DefaultRemoveBackoff
	}

	b := retry.WithMaxRetries(r.RemoveRetries, retry.NewConstant(backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("audio file busy, retrying", "path", path, slog.Any("err", err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w: %w", path, audiobook.ErrFileBusy, err)
	}
	return nil
}

// Regenerate deletes the audio of unit index and synthesizes it again.
func (r *Regenerator) Regenerate(ctx context.Context, dir string, index int) (RegenResult, error) {
	p, err := project.Open(dir)
	if err != nil {
		return RegenResult{}, err
	}
	u, err := p.Unit(index)
	if err != nil {
		return RegenResult{}, err
	}

	s := p.Speakers().Resolve(u.SpeakerID)
	if err := r.validate(s); err != nil {
		return RegenResult{}, err
	}

	run := library.Run{
		ID:        uuid.New(),
		Project:   p.Dir(),
		Mode:      "regen",
		Status:    library.StatusRunning,
		Total:     1,
		StartedAt: time.Now(),
	}
	if err := r.Runs.Start(ctx, run); err != nil {
		slog.Warn("failed to record regeneration run", slog.Any("err", err))
	}

	result, err := r.regenerate(ctx, p, u, s)

	run.FinishedAt = time.Now()
	run.Status = library.StatusCompleted
	if err != nil {
		run.Status = library.StatusFailed
		run.Failed = 1
	} else {
		run.Done = 1
		run.Synthesized = 1
	}
	if err := r.Runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("failed to record regeneration run", slog.Any("err", err))
	}
	return result, err
}

func (r *Regenerator) regenerate(ctx context.Context, p *project.Project, u project.Unit, s speaker.Speaker) (RegenResult, error) {
	target := p.Path(project.AudioFileName(u.Index))
	if err := r.removeAudio(ctx, target); err != nil {
		return RegenResult{}, err
	}
	if u.AudioPath != "" {
		if err := p.ClearAudio(u.Index); err != nil {
			return RegenResult{}, err
		}
	}

	workDir, err := p.WorkPath()
	if err != nil {
		return RegenResult{}, err
	}
	defer p.CleanWork()

	engineCtx := context.WithoutCancel(ctx)
	loader := r.newLoader(engineCtx)
	defer loader.Close()

	v, err := r.load(engineCtx, loader, s)
	if err != nil {
		return RegenResult{}, err
	}
	tmp, err := r.synthesize(engineCtx, v, workDir, u)
	if err != nil {
		logUnitFailure(u.Index, s, err)
		return RegenResult{}, err
	}
	if err := install(p, u.Index, tmp); err != nil {
		return RegenResult{}, err
	}

	slog.Info("unit regenerated", "project", p.Name(), "index", u.Index, "speakerID", s.ID)
	return RegenResult{
		Index:     u.Index,
		AudioPath: target,
		SpeakerID: u.SpeakerID,
	}, nil
}

package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/library"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/samber/lo"
)

type Mode string

const (
	// ModeFresh synthesizes every unit.
	ModeFresh Mode = "fresh"
	// ModeContinue synthesizes the units that have no audio yet.
	ModeContinue Mode = "continue"
	// ModeRegenOnly synthesizes the units flagged for regeneration.
	ModeRegenOnly Mode = "regen-only"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeFresh, ModeContinue, ModeRegenOnly:
		return m, nil
	}
	return "", fmt.Errorf("unknown generation mode %q: %w", s, audiobook.ErrValidation)
}

// Request describes one bulk generation run.
type Request struct {
	Dir  string
	Mode Mode

	// OnProgress receives floor(done*100/total) after every synthesized unit.
	OnProgress func(percent int)
	// OnUnitReady is called once the audio of a unit is in place.
	OnUnitReady func(index int, sentence string)
	// ShouldStop is polled before every unit.
	ShouldStop func() bool
}

type Result struct {
	RunID       uuid.UUID
	Total       int
	Done        int
	Synthesized int
	Failed      int
	Stopped     bool
}

// Scheduler synthesizes the units of a project, grouped by speaker.
type Scheduler struct {
	Engines
	Runs library.RunRepository
}

func NewScheduler(engines Engines, runs library.RunRepository) *Scheduler {
	if runs == nil {
		runs = library.NopRunRepository{}
	}
	return &Scheduler{Engines: engines, Runs: runs}
}

// selected reports whether u takes part in a run of the given mode.
func selected(mode Mode, u project.Unit) bool {
	switch mode {
	case ModeRegenOnly:
		return u.Regen
	default:
		return true
	}
}

// pending reports whether u still has to be synthesized.
func pending(mode Mode, u project.Unit) bool {
	switch mode {
	case ModeContinue:
		return !u.Generated
	case ModeRegenOnly:
		return u.Regen
	default:
		return true
	}
}

type group struct {
	speaker speaker.Speaker
	units   []project.Unit
}

// groups partitions units by their effective speaker, in order of first
// appearance. Units of each group keep their index order.
func groups(speakers *speaker.Registry, units []project.Unit) []group {
	resolve := func(u project.Unit) speaker.ID {
		if speakers.Has(u.SpeakerID) {
			return u.SpeakerID
		}
		return speaker.NarratorID
	}
	byID := lo.GroupBy(units, resolve)
	order := lo.Uniq(lo.Map(units, func(u project.Unit, _ int) speaker.ID { return resolve(u) }))
	return lo.Map(order, func(id speaker.ID, _ int) group {
		return group{speaker: speakers.Resolve(id), units: byID[id]}
	})
}

// Run synthesizes the pending units of the project in req.Dir. Units whose
// synthesis fails are logged and skipped. When ShouldStop returns true or ctx
// is cancelled the run ends after the unit in progress and Result.Stopped is
// set. Engine calls are not cancelled by ctx.
func (s *Scheduler) Run(ctx context.Context, req Request) (Result, error) {
	p, err := project.Open(req.Dir)
	if err != nil {
		return Result{}, err
	}

	units := p.Units()
	var result Result
	for _, u := range units {
		if !selected(req.Mode, u) {
			continue
		}
		result.Total++
		if !pending(req.Mode, u) {
			result.Done++
		}
	}
	if result.Total == 0 || result.Done == result.Total {
		slog.Info("nothing to generate", "project", p.Name(), "mode", req.Mode)
		return result, nil
	}

	work := groups(p.Speakers(), lo.Filter(units, func(u project.Unit, _ int) bool {
		return pending(req.Mode, u)
	}))
	for _, g := range work {
		if err := s.validate(g.speaker); err != nil {
			return Result{}, err
		}
	}

	workDir, err := p.WorkPath()
	if err != nil {
		return Result{}, err
	}
	defer p.CleanWork()

	run := library.Run{
		ID:        uuid.New(),
		Project:   p.Dir(),
		Mode:      string(req.Mode),
		Status:    library.StatusRunning,
		Total:     result.Total,
		Done:      result.Done,
		StartedAt: time.Now(),
	}
	result.RunID = run.ID
	if err := s.Runs.Start(ctx, run); err != nil {
		slog.Warn("failed to record generation run", slog.Any("err", err))
	}

	slog.Info("generation started", "project", p.Name(), "mode", req.Mode, "total", result.Total, "done", result.Done, "speakers", len(work))
	result, err = s.run(ctx, p, workDir, work, req, result)

	run.Done = result.Done
	run.Synthesized = result.Synthesized
	run.Failed = result.Failed
	run.FinishedAt = time.Now()
	switch {
	case err != nil:
		run.Status = library.StatusFailed
	case result.Stopped:
		run.Status = library.StatusStopped
	default:
		run.Status = library.StatusCompleted
	}
	if err := s.Runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("failed to record generation run", slog.Any("err", err))
	}
	slog.Info("generation finished", "project", p.Name(), "status", run.Status, "done", result.Done, "total", result.Total, "failed", result.Failed)
	return result, err
}

func (s *Scheduler) run(ctx context.Context, p *project.Project, workDir string, work []group, req Request, result Result) (Result, error) {
	engineCtx := context.WithoutCancel(ctx)
	loader := s.newLoader(engineCtx)
	defer loader.Close()

	stop := func() bool {
		return ctx.Err() != nil || (req.ShouldStop != nil && req.ShouldStop())
	}

	for _, g := range work {
		if stop() {
			result.Stopped = true
			return result, nil
		}

		v, err := s.load(engineCtx, loader, g.speaker)
		if err != nil {
			slog.Error("failed to load engine, skipping speaker", "speakerID", g.speaker.ID, "units", len(g.units), slog.Any("err", err))
			result.Failed += len(g.units)
			continue
		}

		for _, u := range g.units {
			if stop() {
				result.Stopped = true
				return result, nil
			}

			tmp, err := s.synthesize(engineCtx, v, workDir, u)
			if err != nil {
				logUnitFailure(u.Index, g.speaker, err)
				result.Failed++
				continue
			}
			if err := install(p, u.Index, tmp); err != nil {
				return result, err
			}

			result.Done++
			result.Synthesized++
			slog.Debug("unit synthesized", "index", u.Index, "speakerID", g.speaker.ID)
			if req.OnProgress != nil {
				req.OnProgress(result.Done * 100 / result.Total)
			}
			if req.OnUnitReady != nil {
				req.OnUnitReady(u.Index, u.Sentence)
			}
		}
	}
	return result, nil
}

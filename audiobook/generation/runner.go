package generation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/samber/lo"
)

var ErrBusy = errors.New("a generation worker is already running")

type Worker interface {
	// StartGeneration runs the scheduler in the background.
	StartGeneration(ctx context.Context, req Request) error
	// StartRegeneration regenerates one unit in the background.
	StartRegeneration(ctx context.Context, dir string, index int) error
	// Stop asks the active worker to end after the unit in progress.
	Stop()
	// Wait blocks until the active worker, if any, has finished and returns its error.
	Wait() error
	Running() bool

	AddObserver(observer Observer)
	RemoveObserver(observer Observer)
}

// Observer receives the events of the workers started by a Worker.
type Observer interface {
	OnProgress(percent int)
	OnUnitReady(index int, sentence string)
	OnGenerationFinished(result Result, err error)
	// OnRegenDone receives the new audio path and the unit's speaker.
	OnRegenDone(path string, speakerID speaker.ID)
	OnRegenError(message string)
}

type NoOpObserver struct{}

func (NoOpObserver) OnProgress(percent int)                        {}
func (NoOpObserver) OnUnitReady(index int, sentence string)        {}
func (NoOpObserver) OnGenerationFinished(result Result, err error) {}
func (NoOpObserver) OnRegenDone(path string, speakerID speaker.ID) {}
func (NoOpObserver) OnRegenError(message string)                   {}

var _ Worker = (*runnerImpl)(nil)

type runnerImpl struct {
	scheduler   *Scheduler
	regenerator *Regenerator

	mu        sync.Mutex
	done      chan struct{}
	err       error
	stop      atomic.Bool
	observers []Observer
}

// NewRunner returns a Worker that allows a single scheduler or regeneration
// worker at a time.
func NewRunner(scheduler *Scheduler, regenerator *Regenerator) Worker {
	return &runnerImpl{
		scheduler:   scheduler,
		regenerator: regenerator,
		observers:   make([]Observer, 0),
	}
}

func (r *runnerImpl) AddObserver(observer Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, observer)
}

func (r *runnerImpl) RemoveObserver(observer Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = lo.Reject(r.observers, func(o Observer, _ int) bool {
		return o == observer
	})
}

func (r *runnerImpl) notify(fn func(o Observer)) {
	r.mu.Lock()
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()
	for _, o := range observers {
		fn(o)
	}
}

func (r *runnerImpl) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running()
}

func (r *runnerImpl) running() bool {
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// start launches fn unless a worker is active.
func (r *runnerImpl) start(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running() {
		slog.Warn("worker already running, request rejected")
		return ErrBusy
	}

	r.stop.Store(false)
	r.err = nil
	done := make(chan struct{})
	r.done = done
	go func() {
		err := fn()
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(done)
	}()
	return nil
}

func (r *runnerImpl) StartGeneration(ctx context.Context, req Request) error {
	shouldStop := req.ShouldStop
	req.ShouldStop = func() bool {
		return r.stop.Load() || (shouldStop != nil && shouldStop())
	}
	onProgress := req.OnProgress
	req.OnProgress = func(percent int) {
		if onProgress != nil {
			onProgress(percent)
		}
		r.notify(func(o Observer) { o.OnProgress(percent) })
	}
	onUnitReady := req.OnUnitReady
	req.OnUnitReady = func(index int, sentence string) {
		if onUnitReady != nil {
			onUnitReady(index, sentence)
		}
		r.notify(func(o Observer) { o.OnUnitReady(index, sentence) })
	}

	return r.start(func() error {
		slog.Info("generation worker started", "project", req.Dir, "mode", req.Mode)
		result, err := r.scheduler.Run(ctx, req)
		if err != nil {
			slog.Error("generation worker failed", slog.Any("err", err))
		}
		r.notify(func(o Observer) { o.OnGenerationFinished(result, err) })
		return err
	})
}

func (r *runnerImpl) StartRegeneration(ctx context.Context, dir string, index int) error {
	return r.start(func() error {
		slog.Info("regeneration worker started", "project", dir, "index", index)
		result, err := r.regenerator.Regenerate(ctx, dir, index)
		if err != nil {
			slog.Error("regeneration worker failed", "index", index, slog.Any("err", err))
			r.notify(func(o Observer) { o.OnRegenError(err.Error()) })
			return err
		}
		r.notify(func(o Observer) { o.OnRegenDone(result.AudioPath, result.SpeakerID) })
		return nil
	})
}

func (r *runnerImpl) Stop() {
	slog.Info("stopping worker")
	r.stop.Store(true)
}

func (r *runnerImpl) Wait() error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

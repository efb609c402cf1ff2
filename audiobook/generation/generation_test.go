package generation_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/generation"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/makeitchaccha/audiobook/audiobook/tts"
	"github.com/makeitchaccha/audiobook/audiobook/tts/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockVoice = speaker.Settings{speaker.KeyTTSEngine: "mock", speaker.KeyUseS2S: false}

func numbered(n int) string {
	var b strings.Builder
	for i := range n {
		fmt.Fprintf(&b, "Sentence %d.\n", i)
	}
	return b.String()
}

func newProject(t *testing.T, manuscript string, speakers *speaker.Registry) *project.Project {
	t.Helper()
	if speakers == nil {
		speakers = speaker.NewRegistry()
	}
	require.NoError(t, speakers.UpdateSettings(speaker.NarratorID, mockVoice))
	p, err := project.Create(filepath.Join(t.TempDir(), "book"), manuscript, project.CreateOptions{Speakers: speakers})
	require.NoError(t, err)
	return p
}

func reopen(t *testing.T, p *project.Project) *project.Project {
	t.Helper()
	loaded, err := project.Open(p.Dir())
	require.NoError(t, err)
	return loaded
}

func generated(p *project.Project) []int {
	var indices []int
	for _, u := range p.Units() {
		if u.Generated {
			indices = append(indices, u.Index)
		}
	}
	return indices
}

func newScheduler(engine *mock.Engine, converter *mock.Converter) *generation.Scheduler {
	return generation.NewScheduler(generation.Engines{Registry: mock.Registry(engine, converter)}, nil)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"fresh", "continue", "regen-only"} {
		mode, err := generation.ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, generation.Mode(s), mode)
	}
	_, err := generation.ParseMode("everything")
	assert.ErrorIs(t, err, audiobook.ErrValidation)
}

func TestSchedulerFresh(t *testing.T) {
	p := newProject(t, "Hello world.\nThis is a test.\n\nSecond paragraph here.\n", nil)
	engine := mock.NewEngine("mock")

	var progress []int
	var ready []int
	result, err := newScheduler(engine, nil).Run(context.Background(), generation.Request{
		Dir:         p.Dir(),
		Mode:        generation.ModeFresh,
		OnProgress:  func(percent int) { progress = append(progress, percent) },
		OnUnitReady: func(index int, _ string) { ready = append(ready, index) },
	})
	require.NoError(t, err)

	assert.Equal(t, []int{33, 66, 100}, progress)
	assert.Equal(t, []int{0, 1, 2}, ready)
	assert.Equal(t, 3, result.Done)
	assert.Equal(t, 3, result.Synthesized)
	assert.False(t, result.Stopped)

	loaded := reopen(t, p)
	assert.Equal(t, []int{0, 1, 2}, generated(loaded))
	for _, u := range loaded.Units() {
		assert.Equal(t, project.AudioFileName(u.Index), u.AudioPath)
		assert.FileExists(t, loaded.Path(u.AudioPath))
	}
	assert.NoDirExists(t, p.Path(project.WorkDir))
}

func TestSchedulerGroupsBySpeaker(t *testing.T) {
	speakers := speaker.NewRegistry()
	alice, err := speakers.Create("Alice", "#FF0000", mockVoice)
	require.NoError(t, err)
	bob, err := speakers.Create("Bob", "#0000FF", mockVoice)
	require.NoError(t, err)

	p := newProject(t, numbered(6), speakers)
	for i := range 6 {
		id := alice.ID
		if i%2 == 1 {
			id = bob.ID
		}
		require.NoError(t, p.AssignSpeaker(i, id))
	}

	engine := mock.NewEngine("mock")
	var ready []int
	_, err = newScheduler(engine, nil).Run(context.Background(), generation.Request{
		Dir:         p.Dir(),
		Mode:        generation.ModeFresh,
		OnUnitReady: func(index int, _ string) { ready = append(ready, index) },
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 4, 1, 3, 5}, ready)
	assert.Len(t, engine.Loads(), 2, "one load per speaker")
}

func TestSchedulerStopAndContinue(t *testing.T) {
	p := newProject(t, numbered(100), nil)
	require.Equal(t, 100, p.Len())

	engine := mock.NewEngine("mock")
	scheduler := newScheduler(engine, nil)

	stopped := false
	var progress []int
	result, err := scheduler.Run(context.Background(), generation.Request{
		Dir:        p.Dir(),
		Mode:       generation.ModeFresh,
		OnProgress: func(percent int) { progress = append(progress, percent) },
		OnUnitReady: func(index int, _ string) {
			if index == 37 {
				stopped = true
			}
		},
		ShouldStop: func() bool { return stopped },
	})
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, 38, result.Done)
	assert.Equal(t, 38, progress[len(progress)-1])

	loaded := reopen(t, p)
	for _, u := range loaded.Units() {
		assert.Equal(t, u.Index <= 37, u.Generated, "unit %d", u.Index)
	}

	progress = nil
	result, err = scheduler.Run(context.Background(), generation.Request{
		Dir:        p.Dir(),
		Mode:       generation.ModeContinue,
		OnProgress: func(percent int) { progress = append(progress, percent) },
	})
	require.NoError(t, err)
	assert.Equal(t, 100, result.Total)
	assert.Equal(t, 100, result.Done)
	assert.Equal(t, 62, result.Synthesized)
	assert.Equal(t, 39, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.Len(t, engine.Calls(), 100, "no unit synthesized twice")
	assert.Len(t, generated(reopen(t, p)), 100)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	p := newProject(t, numbered(5), nil)
	engine := mock.NewEngine("mock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result, err := newScheduler(engine, nil).Run(ctx, generation.Request{
		Dir:  p.Dir(),
		Mode: generation.ModeFresh,
		OnUnitReady: func(index int, _ string) {
			if index == 1 {
				cancel()
			}
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, []int{0, 1}, generated(reopen(t, p)))
}

func TestSchedulerSkipsFailedUnits(t *testing.T) {
	p := newProject(t, "One.\nTwo.\nThree.\n", nil)
	engine := mock.NewEngine("mock")
	engine.FailOn = func(text string) bool { return text == "Two." }

	var progress []int
	result, err := newScheduler(engine, nil).Run(context.Background(), generation.Request{
		Dir:        p.Dir(),
		Mode:       generation.ModeFresh,
		OnProgress: func(percent int) { progress = append(progress, percent) },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Done)
	assert.Equal(t, []int{33, 66}, progress)
	assert.Equal(t, []int{0, 2}, generated(reopen(t, p)))
	assert.NoFileExists(t, p.Path(project.AudioFileName(1)))
}

func TestSchedulerUnknownEngine(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n", nil)
	require.NoError(t, p.Speakers().UpdateSettings(speaker.NarratorID, speaker.Settings{speaker.KeyTTSEngine: "nope"}))
	require.NoError(t, p.SaveSettings())

	engine := mock.NewEngine("mock")
	_, err := newScheduler(engine, nil).Run(context.Background(), generation.Request{Dir: p.Dir(), Mode: generation.ModeFresh})
	assert.ErrorIs(t, err, audiobook.ErrConfig)
	assert.ErrorIs(t, err, tts.ErrUnknownEngine)
	assert.Empty(t, engine.Calls())
	assert.Empty(t, generated(reopen(t, p)))
}

func TestSchedulerSkipsSpeakerWhoseEngineFailsToLoad(t *testing.T) {
	speakers := speaker.NewRegistry()
	broken, err := speakers.Create("Broken", "#00FF00", speaker.Settings{speaker.KeyTTSEngine: "broken"})
	require.NoError(t, err)
	p := newProject(t, "One.\nTwo.\nThree.\n", speakers)
	require.NoError(t, p.AssignSpeaker(1, broken.ID))

	engine := mock.NewEngine("mock")
	registry := mock.Registry(engine, nil)
	require.NoError(t, registry.RegisterEngine("broken", mock.NewEngine("broken").Factory(mock.ErrInjected)))

	result, err := generation.NewScheduler(generation.Engines{Registry: registry}, nil).Run(context.Background(), generation.Request{
		Dir:  p.Dir(),
		Mode: generation.ModeFresh,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []int{0, 2}, generated(reopen(t, p)))
}

func TestSchedulerRegenOnly(t *testing.T) {
	p := newProject(t, "One.\nTwo.\nThree.\n", nil)
	engine := mock.NewEngine("mock")
	scheduler := newScheduler(engine, nil)

	_, err := scheduler.Run(context.Background(), generation.Request{Dir: p.Dir(), Mode: generation.ModeFresh})
	require.NoError(t, err)

	p = reopen(t, p)
	require.NoError(t, p.SetRegen(1, true))

	var progress []int
	result, err := scheduler.Run(context.Background(), generation.Request{
		Dir:        p.Dir(),
		Mode:       generation.ModeRegenOnly,
		OnProgress: func(percent int) { progress = append(progress, percent) },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, []int{100}, progress)
	assert.Equal(t, []string{"One.", "Two.", "Three.", "Two."}, engine.Texts())

	u, err := reopen(t, p).Unit(1)
	require.NoError(t, err)
	assert.True(t, u.Regen, "regen flag is left as-is")
	assert.True(t, u.Generated)
}

func TestSchedulerNothingToDo(t *testing.T) {
	p := newProject(t, "One.\n", nil)
	engine := mock.NewEngine("mock")

	result, err := newScheduler(engine, nil).Run(context.Background(), generation.Request{Dir: p.Dir(), Mode: generation.ModeRegenOnly})
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.Empty(t, engine.Calls())
}

func TestSchedulerVoiceConversion(t *testing.T) {
	speakers := speaker.NewRegistry()
	p := newProject(t, "One.\nTwo.\n", speakers)
	require.NoError(t, p.Speakers().UpdateSettings(speaker.NarratorID, speaker.Settings{
		speaker.KeyTTSEngine: "mock",
		speaker.KeyS2SEngine: "rvc",
		speaker.KeyUseS2S:    true,
	}))
	require.NoError(t, p.SaveSettings())

	engine := mock.NewEngine("mock")
	converter := mock.NewConverter("rvc")
	result, err := newScheduler(engine, converter).Run(context.Background(), generation.Request{Dir: p.Dir(), Mode: generation.ModeFresh})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Done)
	assert.Len(t, converter.Calls(), 2)
	assert.Equal(t, 1, converter.LoadCount())
	for _, call := range converter.Calls() {
		assert.Equal(t, p.Path(project.WorkDir), filepath.Dir(call.InPath))
	}
	assert.NoDirExists(t, p.Path(project.WorkDir))
	assert.Equal(t, []int{0, 1}, generated(reopen(t, p)))
}

func newRegenerator(engine *mock.Engine) *generation.Regenerator {
	r := generation.NewRegenerator(generation.Engines{Registry: mock.Registry(engine, nil)}, nil)
	r.RemoveBackoff = time.Millisecond
	return r
}

func TestRegenerate(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n", nil)
	engine := mock.NewEngine("mock")
	_, err := newScheduler(engine, nil).Run(context.Background(), generation.Request{Dir: p.Dir(), Mode: generation.ModeFresh})
	require.NoError(t, err)

	result, err := newRegenerator(engine).Regenerate(context.Background(), p.Dir(), 1)
	require.NoError(t, err)
	assert.Equal(t, generation.RegenResult{
		Index:     1,
		AudioPath: p.Path(project.AudioFileName(1)),
		SpeakerID: speaker.NarratorID,
	}, result)
	assert.Equal(t, []string{"One.", "Two.", "Two."}, engine.Texts())
	assert.FileExists(t, result.AudioPath)
	assert.Equal(t, []int{0, 1}, generated(reopen(t, p)))
}

func TestRegenerateInvalidIndex(t *testing.T) {
	p := newProject(t, "One.\n", nil)
	_, err := newRegenerator(mock.NewEngine("mock")).Regenerate(context.Background(), p.Dir(), 5)
	assert.ErrorIs(t, err, audiobook.ErrValidation)
}

func TestRegenerateBusyFile(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n", nil)
	engine := mock.NewEngine("mock")
	_, err := newScheduler(engine, nil).Run(context.Background(), generation.Request{Dir: p.Dir(), Mode: generation.ModeFresh})
	require.NoError(t, err)

	locked := errors.New("file in use")
	t.Run("Exhausted", func(t *testing.T) {
		attempts := 0
		r := newRegenerator(engine)
		r.RemoveRetries = 2
		r.Remove = func(string) error {
			attempts++
			return locked
		}

		_, err := r.Regenerate(context.Background(), p.Dir(), 1)
		assert.ErrorIs(t, err, audiobook.ErrFileBusy)
		assert.Equal(t, 3, attempts)
		assert.FileExists(t, p.Path(project.AudioFileName(1)))
		assert.Equal(t, []int{0, 1}, generated(reopen(t, p)), "map unchanged")
	})

	t.Run("Released", func(t *testing.T) {
		attempts := 0
		r := newRegenerator(engine)
		r.Remove = func(path string) error {
			attempts++
			if attempts < 3 {
				return locked
			}
			return os.Remove(path)
		}

		_, err := r.Regenerate(context.Background(), p.Dir(), 1)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})
}

func TestRegenerateEngineFailure(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n", nil)
	engine := mock.NewEngine("mock")
	_, err := newScheduler(engine, nil).Run(context.Background(), generation.Request{Dir: p.Dir(), Mode: generation.ModeFresh})
	require.NoError(t, err)

	engine.FailOn = func(string) bool { return true }
	_, err = newRegenerator(engine).Regenerate(context.Background(), p.Dir(), 0)
	assert.ErrorIs(t, err, audiobook.ErrEngine)

	u, err := reopen(t, p).Unit(0)
	require.NoError(t, err)
	assert.False(t, u.Generated)
	assert.Empty(t, u.AudioPath)
}

type recordingObserver struct {
	generation.NoOpObserver

	mu       sync.Mutex
	progress []int
	regen    []string
	errs     []string
}

func (o *recordingObserver) OnProgress(percent int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, percent)
}

func (o *recordingObserver) OnRegenDone(path string, _ speaker.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.regen = append(o.regen, path)
}

func (o *recordingObserver) OnRegenError(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, message)
}

func TestRunnerSingleWorker(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n", nil)
	engine := mock.NewEngine("mock")
	release := make(chan struct{})
	engine.BeforeGenerate = func(tts.SpeechRequest) { <-release }

	runner := generation.NewRunner(newScheduler(engine, nil), newRegenerator(engine))
	observer := &recordingObserver{}
	runner.AddObserver(observer)

	ctx := context.Background()
	require.NoError(t, runner.StartGeneration(ctx, generation.Request{Dir: p.Dir(), Mode: generation.ModeFresh}))
	assert.True(t, runner.Running())
	assert.ErrorIs(t, runner.StartGeneration(ctx, generation.Request{Dir: p.Dir(), Mode: generation.ModeFresh}), generation.ErrBusy)
	assert.ErrorIs(t, runner.StartRegeneration(ctx, p.Dir(), 0), generation.ErrBusy)

	close(release)
	require.NoError(t, runner.Wait())
	assert.False(t, runner.Running())
	assert.Equal(t, []int{50, 100}, observer.progress)

	require.NoError(t, runner.StartRegeneration(ctx, p.Dir(), 0))
	require.NoError(t, runner.Wait())
	assert.Equal(t, []string{p.Path(project.AudioFileName(0))}, observer.regen)
}

func TestRunnerStop(t *testing.T) {
	p := newProject(t, numbered(10), nil)
	engine := mock.NewEngine("mock")
	runner := generation.NewRunner(newScheduler(engine, nil), newRegenerator(engine))

	var once sync.Once
	require.NoError(t, runner.StartGeneration(context.Background(), generation.Request{
		Dir:  p.Dir(),
		Mode: generation.ModeFresh,
		OnUnitReady: func(index int, _ string) {
			if index == 2 {
				once.Do(runner.Stop)
			}
		},
	}))
	require.NoError(t, runner.Wait())
	assert.Equal(t, []int{0, 1, 2}, generated(reopen(t, p)))
}

func TestRunnerRegenError(t *testing.T) {
	p := newProject(t, "One.\n", nil)
	engine := mock.NewEngine("mock")
	runner := generation.NewRunner(newScheduler(engine, nil), newRegenerator(engine))
	observer := &recordingObserver{}
	runner.AddObserver(observer)

	require.NoError(t, runner.StartRegeneration(context.Background(), p.Dir(), 3))
	assert.ErrorIs(t, runner.Wait(), audiobook.ErrValidation)
	require.Len(t, observer.errs, 1)
	assert.Contains(t, observer.errs[0], "out of range")

	runner.RemoveObserver(observer)
	require.NoError(t, runner.StartRegeneration(context.Background(), p.Dir(), 3))
	assert.Error(t, runner.Wait())
	assert.Len(t, observer.errs, 1)
}

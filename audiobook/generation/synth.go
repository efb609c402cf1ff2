// Package generation drives synthesis: the bulk scheduler, the single-unit
// regenerator and the runner that keeps at most one of them active.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/observe"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/makeitchaccha/audiobook/audiobook/tts"
)

// Engines is what both workers need to turn a unit into audio.
type Engines struct {
	Registry *tts.EngineRegistry
	Catalog  *tts.Catalog
	Metrics  *observe.Metrics
	// WrapEngine decorates every loaded TTS engine, e.g. with a synthesis cache.
	WrapEngine func(tts.Engine) tts.Engine
}

func (e Engines) metrics() *observe.Metrics {
	if e.Metrics == nil {
		return observe.DefaultMetrics()
	}
	return e.Metrics
}

// newLoader creates the worker-owned handle cache.
func (e Engines) newLoader(ctx context.Context) *tts.Loader {
	loader := tts.NewLoader(e.Registry, e.Catalog)
	loader.WrapEngine = e.WrapEngine
	metrics := e.metrics()
	loader.OnLoad = func(kind tts.Kind, name string) {
		metrics.RecordEngineLoad(ctx, name, string(kind))
	}
	return loader
}

// validate checks that the engines selected by s exist.
func (e Engines) validate(s speaker.Speaker) error {
	name := s.Settings.TTSEngine()
	if !e.Registry.HasEngine(name) {
		return fmt.Errorf("speaker %d (%s) uses tts engine %q: %w", s.ID, s.Name, name, tts.ErrUnknownEngine)
	}
	if s.Settings.UseS2S() {
		name := s.Settings.S2SEngine()
		if !e.Registry.HasConverter(name) {
			return fmt.Errorf("speaker %d (%s) uses s2s engine %q: %w", s.ID, s.Name, name, tts.ErrUnknownEngine)
		}
	}
	return nil
}

// voice is the loaded engine pair of one speaker.
type voice struct {
	speaker     speaker.Speaker
	engine      tts.Engine
	ttsSettings speaker.Settings
	converter   tts.VoiceConverter
	s2sSettings speaker.Settings
}

// load resolves the engines for s, reusing handles held by loader.
func (e Engines) load(ctx context.Context, loader *tts.Loader, s speaker.Speaker) (*voice, error) {
	name := s.Settings.TTSEngine()
	engine, err := loader.LoadEngine(ctx, name, s.ID, s.Settings)
	if err != nil {
		return nil, err
	}
	v := &voice{
		speaker:     s,
		engine:      engine,
		ttsSettings: loader.Settings(tts.KindTTS, name, s.Settings),
	}

	if !s.Settings.UseS2S() {
		return v, nil
	}
	name = s.Settings.S2SEngine()
	converter, err := loader.LoadConverter(ctx, name, s.ID, s.Settings)
	if err != nil {
		return nil, err
	}
	v.converter = converter
	v.s2sSettings = loader.Settings(tts.KindS2S, name, s.Settings)
	return v, nil
}

// synthesize produces the final temp file for one unit inside workDir and
// returns its path. Intermediate files are removed.
func (e Engines) synthesize(ctx context.Context, v *voice, workDir string, u project.Unit) (string, error) {
	started := time.Now()
	ttsOut := filepath.Join(workDir, fmt.Sprintf("tts_%d.wav", u.Index))
	err := v.engine.GenerateSpeech(ctx, tts.SpeechRequest{
		Text:     u.Sentence,
		Settings: v.ttsSettings,
		OutPath:  ttsOut,
	})
	if err != nil {
		os.Remove(ttsOut)
		e.metrics().RecordFailure(ctx, v.engine.Name(), string(tts.KindTTS))
		return "", wrapEngineError(err)
	}

	out := ttsOut
	if v.converter != nil {
		s2sOut := filepath.Join(workDir, fmt.Sprintf("s2s_%d.wav", u.Index))
		err := v.converter.ConvertVoice(ctx, tts.ConversionRequest{
			InPath:   ttsOut,
			OutPath:  s2sOut,
			Settings: v.s2sSettings,
		})
		os.Remove(ttsOut)
		if err != nil {
			os.Remove(s2sOut)
			e.metrics().RecordFailure(ctx, v.converter.Name(), string(tts.KindS2S))
			return "", wrapEngineError(err)
		}
		out = s2sOut
	}

	e.metrics().RecordSynthesis(ctx, v.engine.Name(), time.Since(started))
	return out, nil
}

func wrapEngineError(err error) error {
	if errors.Is(err, audiobook.ErrEngine) {
		return err
	}
	return fmt.Errorf("%w: %w", audiobook.ErrEngine, err)
}

// install moves the synthesized file into place and records it in the map.
func install(p *project.Project, index int, tmp string) error {
	name := project.AudioFileName(index)
	if err := project.MoveFile(tmp, p.Path(name)); err != nil {
		return err
	}
	return p.MarkGenerated(index, name)
}

func logUnitFailure(index int, s speaker.Speaker, err error) {
	slog.Error("failed to synthesize unit", "index", index, "speakerID", s.ID, slog.Any("err", err))
}

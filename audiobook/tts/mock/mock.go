// Package mock provides test doubles for the tts engine families. Engines
// write short silent WAV files, record every call and fail on demand.
package mock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/makeitchaccha/audiobook/audiobook/tts"
	"github.com/makeitchaccha/audiobook/audiobook/wavfile"
)

var ErrInjected = errors.New("injected failure")

// DefaultFormat is the format written by the mock engines.
var DefaultFormat = wavfile.Format{SampleRate: 16000, NumChannels: 1, BitDepth: 16}

var (
	_ tts.Engine         = (*Engine)(nil)
	_ tts.VoiceConverter = (*Converter)(nil)
)

// Engine is a text-to-speech double.
type Engine struct {
	EngineName string
	Format     wavfile.Format
	Duration   time.Duration
	// FailOn, when set, makes GenerateSpeech fail for matching text.
	FailOn func(text string) bool
	// BeforeGenerate runs at the start of every call, e.g. to cancel a run mid-way.
	BeforeGenerate func(request tts.SpeechRequest)

	mu     sync.Mutex
	calls  []tts.SpeechRequest
	loads  []speaker.Settings
	closed int
}

func NewEngine(name string) *Engine {
	return &Engine{
		EngineName: name,
		Format:     DefaultFormat,
		Duration:   10 * time.Millisecond,
	}
}

func (e *Engine) Name() string {
	return e.EngineName
}

func (e *Engine) GenerateSpeech(_ context.Context, request tts.SpeechRequest) error {
	if e.BeforeGenerate != nil {
		e.BeforeGenerate(request)
	}

	e.mu.Lock()
	e.calls = append(e.calls, request)
	e.mu.Unlock()

	if e.FailOn != nil && e.FailOn(request.Text) {
		return fmt.Errorf("%s: %w: %w", e.EngineName, audiobook.ErrEngine, ErrInjected)
	}
	return wavfile.WriteSilence(request.OutPath, e.Format, e.Duration)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

// Calls returns every request received so far.
func (e *Engine) Calls() []tts.SpeechRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.SpeechRequest(nil), e.calls...)
}

// Texts returns the text of every request in call order.
func (e *Engine) Texts() []string {
	calls := e.Calls()
	texts := make([]string, len(calls))
	for i, c := range calls {
		texts[i] = c.Text
	}
	return texts
}

// Loads returns the settings of every factory call.
func (e *Engine) Loads() []speaker.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speaker.Settings(nil), e.loads...)
}

func (e *Engine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Factory returns a factory handing out e itself. loadErr, when non-nil, is
// returned instead.
func (e *Engine) Factory(loadErr error) tts.EngineFactory {
	return func(_ context.Context, settings speaker.Settings) (tts.Engine, error) {
		e.mu.Lock()
		e.loads = append(e.loads, settings.Clone())
		e.mu.Unlock()
		if loadErr != nil {
			return nil, loadErr
		}
		return e, nil
	}
}

// Converter is a speech-to-speech double that copies its input.
type Converter struct {
	ConverterName string
	FailOn        func(in string) bool

	mu    sync.Mutex
	calls []tts.ConversionRequest
	loads int
}

func NewConverter(name string) *Converter {
	return &Converter{ConverterName: name}
}

func (c *Converter) Name() string {
	return c.ConverterName
}

func (c *Converter) ConvertVoice(_ context.Context, request tts.ConversionRequest) error {
	c.mu.Lock()
	c.calls = append(c.calls, request)
	c.mu.Unlock()

	if c.FailOn != nil && c.FailOn(request.InPath) {
		return fmt.Errorf("%s: %w: %w", c.ConverterName, audiobook.ErrEngine, ErrInjected)
	}
	data, err := os.ReadFile(request.InPath)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", c.ConverterName, audiobook.ErrEngine, err)
	}
	return os.WriteFile(request.OutPath, data, 0o644)
}

func (c *Converter) Calls() []tts.ConversionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tts.ConversionRequest(nil), c.calls...)
}

func (c *Converter) LoadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

func (c *Converter) Factory(loadErr error) tts.ConverterFactory {
	return func(_ context.Context, _ speaker.Settings) (tts.VoiceConverter, error) {
		c.mu.Lock()
		c.loads++
		c.mu.Unlock()
		if loadErr != nil {
			return nil, loadErr
		}
		return c, nil
	}
}

// Registry returns a registry with e registered under its name and, when c
// is non-nil, c under its name.
func Registry(e *Engine, c *Converter) *tts.EngineRegistry {
	r := tts.NewEngineRegistry()
	if e != nil {
		_ = r.RegisterEngine(e.EngineName, e.Factory(nil))
	}
	if c != nil {
		_ = r.RegisterConverter(c.ConverterName, c.Factory(nil))
	}
	return r
}

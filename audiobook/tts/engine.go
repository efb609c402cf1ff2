// Package tts adapts text-to-speech (TTS) and speech-to-speech (S2S) engines
// to one contract: the caller picks a temp path, the engine writes a WAV file
// there.
package tts

import (
	"context"

	"github.com/makeitchaccha/audiobook/audiobook/speaker"
)

// Engine is a loaded text-to-speech model. A handle is created by an
// EngineFactory and may hold expensive resources; implement io.Closer to have
// them released when the Loader replaces the handle.
type Engine interface {
	// Name returns the registered name of the engine, e.g. "google", "command".
	Name() string

	// GenerateSpeech synthesizes request.Text into a WAV file at request.OutPath.
	GenerateSpeech(ctx context.Context, request SpeechRequest) error
}

type SpeechRequest struct {
	Text     string
	Settings speaker.Settings
	OutPath  string
}

// VoiceConverter is a loaded speech-to-speech model that re-voices an
// existing recording.
type VoiceConverter interface {
	Name() string

	// ConvertVoice reads request.InPath and writes the converted audio to request.OutPath.
	ConvertVoice(ctx context.Context, request ConversionRequest) error
}

type ConversionRequest struct {
	InPath   string
	OutPath  string
	Settings speaker.Settings
}

// EngineFactory loads an engine for the given settings.
type EngineFactory func(ctx context.Context, settings speaker.Settings) (Engine, error)

// ConverterFactory loads a voice converter for the given settings.
type ConverterFactory func(ctx context.Context, settings speaker.Settings) (VoiceConverter, error)

// Kind names an engine family.
type Kind string

const (
	KindTTS Kind = "tts"
	KindS2S Kind = "s2s"
)

package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/mitchellh/mapstructure"
)

const GoogleEngineName = "google"

var _ Engine = (*GoogleEngine)(nil)

// GoogleParams are the speaker settings understood by the google engine.
type GoogleParams struct {
	LanguageCode    string  `mapstructure:"language_code"`
	VoiceName       string  `mapstructure:"voice_name"`
	SpeakingRate    float64 `mapstructure:"speaking_rate"`
	Pitch           float64 `mapstructure:"pitch"`
	SampleRateHertz int32   `mapstructure:"sample_rate_hertz"`
}

func DefaultGoogleParams() GoogleParams {
	return GoogleParams{
		LanguageCode:    "en-US",
		SpeakingRate:    1.0,
		SampleRateHertz: 24000,
	}
}

// decodeParams decodes settings onto defaults. Unknown keys are ignored since
// settings also carry the engine selection.
func decodeParams[T any](settings speaker.Settings, params *T) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(" "),
		WeaklyTypedInput: true,
		Result:           params,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]any(settings)); err != nil {
		return fmt.Errorf("invalid engine parameters: %w", err)
	}
	return nil
}

// GoogleEngine is an implementation of the Engine interface for Google Text-to-Speech.
// It requests LINEAR16 audio, which the API returns with a WAV header.
type GoogleEngine struct {
	client *texttospeech.Client
	params GoogleParams
	owned  bool
}

// NewGoogleTTSEngine wraps an existing client; closing the engine leaves the client open.
func NewGoogleTTSEngine(client *texttospeech.Client, params GoogleParams) *GoogleEngine {
	return &GoogleEngine{
		client: client,
		params: params,
	}
}

// GoogleFactory creates a client per load using Application Default Credentials.
func GoogleFactory(ctx context.Context, settings speaker.Settings) (Engine, error) {
	params := DefaultGoogleParams()
	if err := decodeParams(settings, &params); err != nil {
		return nil, err
	}

	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create google tts client: %w", err)
	}

	return &GoogleEngine{client: client, params: params, owned: true}, nil
}

func (g *GoogleEngine) Name() string {
	return GoogleEngineName
}

func (g *GoogleEngine) GenerateSpeech(ctx context.Context, request SpeechRequest) error {
	params := g.params
	if err := decodeParams(request.Settings, &params); err != nil {
		return fmt.Errorf("%w: %w", audiobook.ErrEngine, err)
	}

	slog.Debug("Synthesize speech", slog.String("text", request.Text), slog.String("voice", params.VoiceName))
	resp, err := g.client.SynthesizeSpeech(ctx, params.request(request.Text))
	if err != nil {
		slog.Error("failed to synthesize speech", "error", err)
		return fmt.Errorf("google tts: %w: %w", audiobook.ErrEngine, err)
	}

	if err := os.WriteFile(request.OutPath, resp.AudioContent, 0o644); err != nil {
		return fmt.Errorf("failed to write speech: %w: %w", audiobook.ErrEngine, err)
	}
	return nil
}

func (g *GoogleEngine) Close() error {
	if !g.owned {
		return nil
	}
	return g.client.Close()
}

func (p GoogleParams) request(text string) *texttospeechpb.SynthesizeSpeechRequest {
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{
				Text: text,
			},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: p.LanguageCode,
			Name:         p.VoiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: p.SampleRateHertz,
			SpeakingRate:    p.SpeakingRate,
			Pitch:           p.Pitch,
		},
	}
}

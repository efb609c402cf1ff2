package tts

import (
	"testing"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleParams(t *testing.T) {
	params := DefaultGoogleParams()
	err := decodeParams(speaker.Settings{
		speaker.KeyTTSEngine: GoogleEngineName,
		"language_code":      "ja-JP",
		"voice_name":         "ja-JP-Neural2-B",
		"speaking_rate":      "1.25",
		"sample_rate_hertz":  float64(48000),
	}, &params)
	require.NoError(t, err)

	assert.Equal(t, GoogleParams{
		LanguageCode:    "ja-JP",
		VoiceName:       "ja-JP-Neural2-B",
		SpeakingRate:    1.25,
		SampleRateHertz: 48000,
	}, params)

	req := params.request("こんにちは")
	assert.Equal(t, texttospeechpb.AudioEncoding_LINEAR16, req.AudioConfig.AudioEncoding)
	assert.Equal(t, "ja-JP-Neural2-B", req.Voice.Name)
	assert.Equal(t, "こんにちは", req.Input.GetText())
}

func TestGoogleParamsInvalid(t *testing.T) {
	params := DefaultGoogleParams()
	err := decodeParams(speaker.Settings{"speaking_rate": "fast"}, &params)
	assert.Error(t, err)
}

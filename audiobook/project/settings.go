package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
)

const DefaultPauseDuration = 0.5

// GenerationSettings is the content of generation_settings.json.
type GenerationSettings struct {
	Speakers      *speaker.Registry `json:"speakers"`
	PauseDuration float64           `json:"pause_duration"`
}

func DefaultGenerationSettings() *GenerationSettings {
	return &GenerationSettings{
		Speakers:      speaker.NewRegistry(),
		PauseDuration: DefaultPauseDuration,
	}
}

// LoadGenerationSettings reads path. A missing file yields the defaults so that
// projects created before speakers existed still open.
func LoadGenerationSettings(path string) (*GenerationSettings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("generation settings not found, using defaults", "path", path)
		return DefaultGenerationSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read generation settings %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}

	settings := DefaultGenerationSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to decode generation settings %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	if settings.Speakers == nil {
		settings.Speakers = speaker.NewRegistry()
	}
	if settings.PauseDuration < 0 {
		settings.PauseDuration = DefaultPauseDuration
	}
	return settings, nil
}

func SaveGenerationSettings(path string, settings *GenerationSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode generation settings: %w: %w", audiobook.ErrProjectIO, err)
	}
	return writeFileAtomic(path, data)
}

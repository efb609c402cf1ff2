package audiobook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Preferences holds cross-project user interface preferences such as the
// background image or the font size. Values are not interpreted.
type Preferences map[string]any

// LoadPreferences reads settings.json. A missing file yields empty preferences.
func LoadPreferences(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Preferences{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w: %w", ErrProjectIO, err)
	}

	prefs := Preferences{}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences %s: %w: %w", path, ErrConfig, err)
	}
	return prefs, nil
}

func SavePreferences(path string, prefs Preferences) error {
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preferences directory: %w: %w", ErrProjectIO, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w: %w", ErrProjectIO, err)
	}
	return nil
}

// Package i18n loads per-locale TOML resources. Each file in a resource
// directory is named after its locale (en-US.toml, de.toml, ...).
package i18n

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
)

type genericResources[S ~string, T any] map[S]T

func (r genericResources[S, T]) Get(locale S) (T, bool) {
	resource, ok := r[locale]
	return resource, ok
}

// GetOrGeneric returns the resource for locale, or the resource of its
// language without region ("en" for "en-US") when the exact locale is missing.
func (r genericResources[S, T]) GetOrGeneric(locale S) (T, bool) {
	if resource, ok := r[locale]; ok {
		return resource, true
	}
	language, _, found := strings.Cut(string(locale), "-")
	if !found {
		var zero T
		return zero, false
	}
	resource, ok := r[S(language)]
	return resource, ok
}

func load[S ~string, T any, U ~map[S]T](directory string, resources U) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return fmt.Errorf("failed to read resources directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			// Skip directories
			continue
		}

		if !strings.HasSuffix(entry.Name(), ".toml") {
			// Skip non-TOML files
			continue
		}

		locale := strings.TrimSuffix(entry.Name(), ".toml")
		filePath := path.Join(directory, entry.Name())

		resource, err := decodeFile[T](filePath)
		if err != nil {
			return err
		}

		resources[S(locale)] = resource
		slog.Debug("Loaded resource", "locale", locale, "file", filePath)
	}

	return nil
}

func decodeFile[T any](filePath string) (T, error) {
	var resource T

	file, err := os.Open(filePath)
	if err != nil {
		return resource, fmt.Errorf("failed to open resource file %s: %w", filePath, err)
	}
	defer file.Close()

	metadata, err := toml.NewDecoder(file).Decode(&resource)
	if err != nil {
		return resource, fmt.Errorf("failed to decode resource file %s: %w", filePath, err)
	}

	if len(metadata.Undecoded()) > 0 {
		slog.Warn("resource file contains undecoded fields", "file", filePath, "fields", metadata.Undecoded())
		return resource, fmt.Errorf("resource file %s contains undecoded fields: %v", filePath, metadata.Undecoded())
	}

	return resource, nil
}

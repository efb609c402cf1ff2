package i18n

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/makeitchaccha/audiobook/audiobook"
)

// Abbreviation is a written form and the words a narrator speaks for it.
type Abbreviation struct {
	From string `toml:"from"` // format: "Mr."
	To   string `toml:"to"`   // format: "Mister"
}

type SpeechResource struct {
	Metadata struct {
		Language string `toml:"language"` // format: "en"
		Name     string `toml:"name"`     // format: "English"
	} `toml:"metadata"`
	Abbreviations []Abbreviation `toml:"abbreviations"`
}

// DefaultAbbreviations is used when no speech resource matches the locale.
var DefaultAbbreviations = []Abbreviation{
	{From: "Mr.", To: "Mister"},
	{From: "Mrs.", To: "Misses"},
	{From: "Ms.", To: "Miss"},
	{From: "Dr.", To: "Doctor"},
}

type SpeechResources struct {
	genericResources[string, SpeechResource]
}

func LoadSpeechResources(directory string) (*SpeechResources, error) {
	resources := &SpeechResources{
		genericResources: make(genericResources[string, SpeechResource]),
	}

	if err := load(directory, resources.genericResources); err != nil {
		return nil, err
	}

	var errs []error
	for locale, resource := range resources.genericResources {
		errs = append(errs, validateResource(resource, "SpeechResource("+locale+")")...)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid speech resources in %s: %w: %w", directory, audiobook.ErrConfig, errors.Join(errs...))
	}

	return resources, nil
}

// Abbreviations returns the abbreviation table for locale, falling back to the
// generic language and finally to DefaultAbbreviations. A nil receiver is valid.
func (srs *SpeechResources) Abbreviations(locale string) []Abbreviation {
	if srs == nil {
		return DefaultAbbreviations
	}
	resource, ok := srs.GetOrGeneric(locale)
	if !ok || len(resource.Abbreviations) == 0 {
		slog.Debug("No speech resource for locale, using default abbreviations", "locale", locale)
		return DefaultAbbreviations
	}
	return resource.Abbreviations
}

// Package speaker holds the speaker registry. A speaker bundles a display name,
// a color and the opaque engine settings used to voice its units.
package speaker

import (
	"fmt"
	"maps"
	"regexp"
	"strconv"
)

type ID int

// NarratorID is reserved for the default speaker, which always exists.
const NarratorID ID = 1

func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// Keys with a fixed meaning inside Settings. Everything else is an engine
// parameter passed through untouched.
const (
	KeyTTSEngine = "tts_engine"
	KeyS2SEngine = "s2s_engine"
	KeyUseS2S    = "use_s2s"
)

// SelectionKeys pick engines rather than configure them.
var SelectionKeys = []string{KeyTTSEngine, KeyS2SEngine, KeyUseS2S}

type Settings map[string]any

func (s Settings) TTSEngine() string {
	name, _ := s[KeyTTSEngine].(string)
	return name
}

func (s Settings) S2SEngine() string {
	name, _ := s[KeyS2SEngine].(string)
	return name
}

// UseS2S accepts booleans as well as the string and numeric forms older
// settings files contain.
func (s Settings) UseS2S() bool {
	switch v := s[KeyUseS2S].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func (s Settings) Clone() Settings {
	if s == nil {
		return Settings{}
	}
	return maps.Clone(s)
}

type Speaker struct {
	ID       ID       `json:"-"`
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	Settings Settings `json:"settings"`
}

func (s Speaker) IsNarrator() bool {
	return s.ID == NarratorID
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func ValidateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return fmt.Errorf("invalid color %q, expected #RRGGBB", color)
	}
	return nil
}

// DefaultNarrator is seeded into every new registry.
func DefaultNarrator() Speaker {
	return Speaker{
		ID:    NarratorID,
		Name:  "Narrator",
		Color: "#FFFFFF",
		Settings: Settings{
			KeyTTSEngine: "command",
			KeyUseS2S:    false,
		},
	}
}

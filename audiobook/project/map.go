// Package project owns a book's on-disk state: the text-audio map, the
// generation settings and the per-unit audio files.
package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/samber/lo"
)

// Unit is one synthesizable sentence and its synthesis state.
type Unit struct {
	Index     int        `json:"-"`
	Sentence  string     `json:"sentence"`
	AudioPath string     `json:"audio_path"` // relative to the project directory, "" until generated
	Generated bool       `json:"generated"`
	SpeakerID speaker.ID `json:"speaker_id"`
	Regen     bool       `json:"regen"`
}

// AudioFileName is the only valid basename for the audio of index i.
func AudioFileName(i int) string {
	return "audio_" + strconv.Itoa(i) + ".wav"
}

func newUnit(index int, sentence string) Unit {
	return Unit{
		Index:     index,
		Sentence:  sentence,
		SpeakerID: speaker.NarratorID,
	}
}

// Map is the ordered unit collection. Indices are always 0..Len()-1.
type Map struct {
	units []Unit
}

func NewMap(sentences []string) *Map {
	units := make([]Unit, len(sentences))
	for i, s := range sentences {
		units[i] = newUnit(i, s)
	}
	return &Map{units: units}
}

func (m *Map) Len() int {
	return len(m.units)
}

// Units returns a copy of all units in index order.
func (m *Map) Units() []Unit {
	return slices.Clone(m.units)
}

func (m *Map) Unit(i int) (Unit, error) {
	if err := m.check(i); err != nil {
		return Unit{}, err
	}
	return m.units[i], nil
}

func (m *Map) Sentences() []string {
	return lo.Map(m.units, func(u Unit, _ int) string { return u.Sentence })
}

func (m *Map) check(i int) error {
	if i < 0 || i >= len(m.units) {
		return fmt.Errorf("unit index %d out of range [0, %d): %w", i, len(m.units), audiobook.ErrValidation)
	}
	return nil
}

func (m *Map) update(i int, fn func(u *Unit)) error {
	if err := m.check(i); err != nil {
		return err
	}
	fn(&m.units[i])
	return nil
}

// replace installs units and renumbers them densely.
func (m *Map) replace(units []Unit) {
	for i := range units {
		units[i].Index = i
	}
	m.units = units
}

func (m *Map) MarshalJSON() ([]byte, error) {
	out := make(map[string]Unit, len(m.units))
	for _, u := range m.units {
		out[strconv.Itoa(u.Index)] = u
	}
	return json.Marshal(out)
}

// UnmarshalJSON is tolerant: unknown fields are ignored, missing fields take
// their defaults and keys are re-densified in numeric order. A unit whose audio
// path does not name its own index loses the path and its generated flag.
func (m *Map) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type keyed struct {
		key int
		raw json.RawMessage
	}
	entries := make([]keyed, 0, len(raw))
	for key, value := range raw {
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 {
			slog.Warn("ignoring map entry with invalid index", "key", key)
			continue
		}
		entries = append(entries, keyed{key: index, raw: value})
	}
	slices.SortFunc(entries, func(a, b keyed) int { return a.key - b.key })

	units := make([]Unit, 0, len(entries))
	for i, e := range entries {
		u := newUnit(i, "")
		if err := json.Unmarshal(e.raw, &u); err != nil {
			return fmt.Errorf("unit %d: %w", e.key, err)
		}
		u.Index = i
		if u.SpeakerID < speaker.NarratorID {
			u.SpeakerID = speaker.NarratorID
		}
		if u.AudioPath != "" {
			u.AudioPath = filepath.Base(u.AudioPath)
			if u.AudioPath != AudioFileName(i) {
				slog.Warn("audio path does not match unit index, marking unit for generation", "index", i, "audioPath", u.AudioPath)
				u.AudioPath = ""
				u.Generated = false
			}
		}
		units = append(units, u)
	}

	m.units = units
	return nil
}

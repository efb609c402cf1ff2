package speaker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/makeitchaccha/audiobook/audiobook"
)

var (
	ErrNotFound          = fmt.Errorf("speaker not found: %w", audiobook.ErrValidation)
	ErrNarratorProtected = fmt.Errorf("narrator cannot be deleted: %w", audiobook.ErrValidation)
)

type Registry struct {
	speakers map[ID]Speaker
}

// NewRegistry returns a registry containing only the default narrator.
func NewRegistry() *Registry {
	r := &Registry{
		speakers: make(map[ID]Speaker),
	}
	r.speakers[NarratorID] = DefaultNarrator()
	return r
}

// Register adds a speaker with a caller-chosen id, replacing the seeded
// narrator when id is NarratorID.
func (r *Registry) Register(s Speaker) error {
	if s.ID < NarratorID {
		return fmt.Errorf("invalid speaker id %d: %w", s.ID, audiobook.ErrValidation)
	}
	if _, ok := r.speakers[s.ID]; ok && s.ID != NarratorID {
		return fmt.Errorf("speaker already registered: %d: %w", s.ID, audiobook.ErrValidation)
	}
	s.Settings = s.Settings.Clone()
	r.speakers[s.ID] = s
	return nil
}

func (r *Registry) Create(name, color string, settings Settings) (Speaker, error) {
	if name == "" {
		return Speaker{}, fmt.Errorf("speaker name must not be empty: %w", audiobook.ErrValidation)
	}
	if err := ValidateColor(color); err != nil {
		return Speaker{}, fmt.Errorf("%w: %w", audiobook.ErrValidation, err)
	}

	s := Speaker{
		ID:       r.nextID(),
		Name:     name,
		Color:    color,
		Settings: settings.Clone(),
	}
	r.speakers[s.ID] = s
	return s, nil
}

func (r *Registry) Rename(id ID, name string) error {
	if name == "" {
		return fmt.Errorf("speaker name must not be empty: %w", audiobook.ErrValidation)
	}
	return r.modify(id, func(s *Speaker) { s.Name = name })
}

func (r *Registry) Recolor(id ID, color string) error {
	if err := ValidateColor(color); err != nil {
		return fmt.Errorf("%w: %w", audiobook.ErrValidation, err)
	}
	return r.modify(id, func(s *Speaker) { s.Color = color })
}

func (r *Registry) UpdateSettings(id ID, settings Settings) error {
	return r.modify(id, func(s *Speaker) { s.Settings = settings.Clone() })
}

func (r *Registry) Delete(id ID) error {
	if id == NarratorID {
		return ErrNarratorProtected
	}
	if _, ok := r.speakers[id]; !ok {
		return fmt.Errorf("delete speaker %d: %w", id, ErrNotFound)
	}
	delete(r.speakers, id)
	return nil
}

func (r *Registry) Get(id ID) (Speaker, bool) {
	s, ok := r.speakers[id]
	if !ok {
		return Speaker{}, false
	}
	s.Settings = s.Settings.Clone()
	return s, true
}

func (r *Registry) Has(id ID) bool {
	_, ok := r.speakers[id]
	return ok
}

// Resolve never fails: unknown ids resolve to the narrator.
func (r *Registry) Resolve(id ID) Speaker {
	if s, ok := r.Get(id); ok {
		return s
	}
	// just log to notify about the dangling reference, the narrator takes over
	slog.Warn("speaker not found in registry, falling back to narrator", "speakerID", id)
	narrator, _ := r.Get(NarratorID)
	return narrator
}

// List returns all speakers in ascending id order.
func (r *Registry) List() []Speaker {
	ids := slices.Sorted(maps.Keys(r.speakers))
	speakers := make([]Speaker, 0, len(ids))
	for _, id := range ids {
		s, _ := r.Get(id)
		speakers = append(speakers, s)
	}
	return speakers
}

func (r *Registry) Len() int {
	return len(r.speakers)
}

func (r *Registry) nextID() ID {
	next := NarratorID
	for id := range r.speakers {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

func (r *Registry) modify(id ID, fn func(s *Speaker)) error {
	s, ok := r.speakers[id]
	if !ok {
		return fmt.Errorf("speaker %d: %w", id, ErrNotFound)
	}
	fn(&s)
	r.speakers[id] = s
	return nil
}

// MarshalJSON writes the registry as an object keyed by stringified id.
func (r *Registry) MarshalJSON() ([]byte, error) {
	out := make(map[string]Speaker, len(r.speakers))
	for id, s := range r.speakers {
		out[id.String()] = s
	}
	return json.Marshal(out)
}

// UnmarshalJSON replaces the registry content. A missing narrator is restored
// with default values so that fallback resolution always succeeds.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var raw map[string]Speaker
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	speakers := make(map[ID]Speaker, len(raw)+1)
	var errs []error
	for key, s := range raw {
		id, err := strconv.Atoi(key)
		if err != nil || ID(id) < NarratorID {
			errs = append(errs, fmt.Errorf("invalid speaker id %q", key))
			continue
		}
		s.ID = ID(id)
		if s.Settings == nil {
			s.Settings = Settings{}
		}
		speakers[s.ID] = s
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if _, ok := speakers[NarratorID]; !ok {
		speakers[NarratorID] = DefaultNarrator()
	}
	r.speakers = speakers
	return nil
}

package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/samber/lo"
)

// Parameter describes one engine setting for editors. Only Attribute and
// Default matter to the engine layer.
type Parameter struct {
	Attribute string   `json:"attribute"`
	Label     string   `json:"label"`
	Type      string   `json:"type"`
	Default   any      `json:"default,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Options   []any    `json:"options,omitempty"`
}

// EngineSpec is one entry of tts_config.json or s2s_config.json.
type EngineSpec struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
	// UploadParams names the settings consumed when the model is loaded.
	// Changing any other setting does not force a reload.
	UploadParams map[string]any `json:"upload_params,omitempty"`
}

// LoadParams returns the sorted keys of UploadParams.
func (s EngineSpec) LoadParams() []string {
	keys := lo.Keys(s.UploadParams)
	slices.Sort(keys)
	return keys
}

// Defaults returns the declared parameter defaults.
func (s EngineSpec) Defaults() speaker.Settings {
	defaults := speaker.Settings{}
	for _, p := range s.Parameters {
		if p.Default != nil {
			defaults[p.Attribute] = p.Default
		}
	}
	return defaults
}

func (s EngineSpec) validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("engine name must not be empty"))
	}
	seen := map[string]bool{}
	for i, p := range s.Parameters {
		if p.Attribute == "" {
			errs = append(errs, fmt.Errorf("%s: parameter %d has no attribute", s.Name, i))
			continue
		}
		if seen[p.Attribute] {
			errs = append(errs, fmt.Errorf("%s: duplicate parameter %q", s.Name, p.Attribute))
		}
		seen[p.Attribute] = true
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			errs = append(errs, fmt.Errorf("%s: parameter %q has min > max", s.Name, p.Attribute))
		}
	}
	return errors.Join(errs...)
}

// Catalog holds the engine declarations of both families.
type Catalog struct {
	specs map[Kind][]EngineSpec
}

func NewCatalog(tts, s2s []EngineSpec) (*Catalog, error) {
	c := &Catalog{specs: map[Kind][]EngineSpec{KindTTS: tts, KindS2S: s2s}}
	var errs []error
	for kind, specs := range c.specs {
		names := map[string]bool{}
		for _, s := range specs {
			if err := s.validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			}
			if names[s.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate engine %q", kind, s.Name))
			}
			names[s.Name] = true
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid engine catalog: %w: %w", audiobook.ErrConfig, err)
	}
	return c, nil
}

// LoadCatalog reads both engine configuration files. A missing file declares
// no engines of that family; a malformed one is an error.
func LoadCatalog(ttsPath, s2sPath string) (*Catalog, error) {
	tts, err := loadSpecs(ttsPath)
	if err != nil {
		return nil, err
	}
	s2s, err := loadSpecs(s2sPath)
	if err != nil {
		return nil, err
	}
	return NewCatalog(tts, s2s)
}

func loadSpecs(path string) ([]EngineSpec, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("engine configuration not found", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read engine configuration %s: %w: %w", path, audiobook.ErrConfig, err)
	}

	var specs []EngineSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to decode engine configuration %s: %w: %w", path, audiobook.ErrConfig, err)
	}
	return specs, nil
}

func (c *Catalog) Specs(kind Kind) []EngineSpec {
	if c == nil {
		return nil
	}
	return c.specs[kind]
}

func (c *Catalog) Spec(kind Kind, name string) (EngineSpec, bool) {
	return lo.Find(c.Specs(kind), func(s EngineSpec) bool { return s.Name == name })
}

// WithDefaults layers settings over the declared defaults of the engine.
func (c *Catalog) WithDefaults(kind Kind, name string, settings speaker.Settings) speaker.Settings {
	spec, ok := c.Spec(kind, name)
	if !ok {
		return settings.Clone()
	}
	merged := spec.Defaults()
	for k, v := range settings {
		merged[k] = v
	}
	return merged
}

// LoadRelevant filters settings down to the keys that influence loading the
// engine. Without declared upload params every non-selection key counts.
func (c *Catalog) LoadRelevant(kind Kind, name string, settings speaker.Settings) speaker.Settings {
	var keep func(key string) bool
	if spec, ok := c.Spec(kind, name); ok && len(spec.UploadParams) > 0 {
		keep = func(key string) bool {
			_, ok := spec.UploadParams[key]
			return ok
		}
	} else {
		keep = func(key string) bool { return !slices.Contains(speaker.SelectionKeys, key) }
	}
	return lo.PickBy(settings, func(key string, _ any) bool { return keep(key) })
}

// Validate reports catalog entries that have no registered implementation.
func (c *Catalog) Validate(registry *EngineRegistry) error {
	var errs []error
	for _, s := range c.Specs(KindTTS) {
		if !registry.HasEngine(s.Name) {
			errs = append(errs, fmt.Errorf("tts engine %q is declared but not available", s.Name))
		}
	}
	for _, s := range c.Specs(KindS2S) {
		if !registry.HasConverter(s.Name) {
			errs = append(errs, fmt.Errorf("s2s engine %q is declared but not available", s.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", audiobook.ErrConfig, err)
	}
	return nil
}

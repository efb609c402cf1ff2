package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/i18n"
	"github.com/makeitchaccha/audiobook/audiobook/segment"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/makeitchaccha/audiobook/audiobook/textnorm"
)

const (
	BookTextFile     = "book_text.txt"
	OriginalTextFile = "original_text_file.txt"
	MapFile          = "text_audio_map.json"
	SettingsFile     = "generation_settings.json"
	SilenceFile      = "silence.wav"
	ExportDir        = "exported_audiobooks"
	WorkDir          = ".work"
)

var ErrProjectExists = errors.New("project already exists")

// Project is a loaded project directory. It is not safe for concurrent use;
// the worker that opened it owns it until it returns.
type Project struct {
	dir      string
	units    *Map
	settings *GenerationSettings
	missing  []int
}

type CreateOptions struct {
	// Normalizer, when set, rewrites every segmented sentence before the map is built.
	Normalizer    *textnorm.Normalizer
	PauseDuration float64
	Speakers      *speaker.Registry
}

// Import reads the manuscript at path and creates a project from it in dir.
func Import(dir, manuscriptPath string, opts CreateOptions) (*Project, error) {
	data, err := os.ReadFile(manuscriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manuscript %s: %w: %w", manuscriptPath, audiobook.ErrProjectIO, err)
	}
	return Create(dir, string(data), opts)
}

// Create initializes dir with the manuscript, its segmented map and default
// generation settings.
func Create(dir, manuscript string, opts CreateOptions) (*Project, error) {
	if fileExists(filepath.Join(dir, MapFile)) {
		return nil, fmt.Errorf("%s: %w: %w", dir, audiobook.ErrValidation, ErrProjectExists)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create project directory %s: %w: %w", dir, audiobook.ErrProjectIO, err)
	}

	sentences := segment.Segment(manuscript)
	if opts.Normalizer != nil {
		for i, s := range sentences {
			sentences[i] = opts.Normalizer.Normalize(s)
		}
	}

	settings := DefaultGenerationSettings()
	if opts.Speakers != nil {
		settings.Speakers = opts.Speakers
	}
	if opts.PauseDuration > 0 {
		settings.PauseDuration = opts.PauseDuration
	}

	p := &Project{
		dir:      dir,
		units:    NewMap(sentences),
		settings: settings,
	}

	if err := writeFileAtomic(filepath.Join(dir, OriginalTextFile), []byte(manuscript)); err != nil {
		return nil, err
	}
	if err := p.SaveSettings(); err != nil {
		return nil, err
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	if err := p.WriteBookText(); err != nil {
		return nil, err
	}

	slog.Info("Created project", "dir", dir, "units", p.units.Len())
	return p, nil
}

// Open loads an existing project. Units flagged generated whose audio file is
// gone are downgraded in memory.
func Open(dir string) (*Project, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project directory %s not found: %w", dir, audiobook.ErrProjectIO)
	}

	data, err := os.ReadFile(filepath.Join(dir, MapFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read text-audio map: %w: %w", audiobook.ErrProjectIO, err)
	}
	units := &Map{}
	if err := json.Unmarshal(data, units); err != nil {
		return nil, fmt.Errorf("failed to decode text-audio map: %w: %w", audiobook.ErrProjectIO, err)
	}

	settings, err := LoadGenerationSettings(filepath.Join(dir, SettingsFile))
	if err != nil {
		return nil, err
	}

	var missing []int
	for i := range units.units {
		u := &units.units[i]
		if u.Generated && (u.AudioPath == "" || !fileExists(filepath.Join(dir, u.AudioPath))) {
			slog.Warn("generated unit has no audio file, marking for generation", "index", u.Index)
			u.Generated = false
			u.AudioPath = ""
			missing = append(missing, u.Index)
		}
	}

	return &Project{dir: dir, units: units, settings: settings, missing: missing}, nil
}

// Missing returns the units whose recorded audio was gone when the project
// was opened.
func (p *Project) Missing() []int {
	return append([]int(nil), p.missing...)
}

func (p *Project) Dir() string {
	return p.dir
}

func (p *Project) Name() string {
	return filepath.Base(filepath.Clean(p.dir))
}

func (p *Project) Len() int {
	return p.units.Len()
}

func (p *Project) Units() []Unit {
	return p.units.Units()
}

func (p *Project) Unit(i int) (Unit, error) {
	return p.units.Unit(i)
}

// AudioPath returns the absolute audio path of unit i, or "" when it has none.
func (p *Project) AudioPath(i int) (string, error) {
	u, err := p.units.Unit(i)
	if err != nil {
		return "", err
	}
	if u.AudioPath == "" {
		return "", nil
	}
	return filepath.Join(p.dir, u.AudioPath), nil
}

// Path joins name onto the project directory.
func (p *Project) Path(name string) string {
	return filepath.Join(p.dir, name)
}

func (p *Project) Settings() *GenerationSettings {
	return p.settings
}

func (p *Project) Speakers() *speaker.Registry {
	return p.settings.Speakers
}

func (p *Project) SaveSettings() error {
	return SaveGenerationSettings(p.Path(SettingsFile), p.settings)
}

// Save writes the whole map atomically.
func (p *Project) Save() error {
	data, err := json.MarshalIndent(p.units, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode text-audio map: %w: %w", audiobook.ErrProjectIO, err)
	}
	return writeFileAtomic(p.Path(MapFile), data)
}

func (p *Project) WriteBookText() error {
	return writeFileAtomic(p.Path(BookTextFile), []byte(segment.Paragraphs(p.units.Sentences())))
}

func (p *Project) mutate(i int, fn func(u *Unit)) error {
	if err := p.units.update(i, fn); err != nil {
		return err
	}
	return p.Save()
}

func (p *Project) AssignSpeaker(i int, id speaker.ID) error {
	if !p.settings.Speakers.Has(id) {
		return fmt.Errorf("assign speaker %d to unit %d: %w", id, i, speaker.ErrNotFound)
	}
	return p.mutate(i, func(u *Unit) { u.SpeakerID = id })
}

func (p *Project) SetRegen(i int, flag bool) error {
	return p.mutate(i, func(u *Unit) { u.Regen = flag })
}

// UpdateSentence changes the text of unit i. Its audio stays on disk until the
// unit is regenerated or the next update pass.
func (p *Project) UpdateSentence(i int, text string) error {
	return p.mutate(i, func(u *Unit) {
		u.Sentence = text
		u.Generated = false
	})
}

// MarkGenerated records that the audio for unit i exists at path, which must be
// audio_{i}.wav inside the project directory.
func (p *Project) MarkGenerated(i int, path string) error {
	name := path
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(p.dir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("audio %s is outside the project: %w", path, audiobook.ErrValidation)
		}
		name = rel
	}
	if name != AudioFileName(i) {
		return fmt.Errorf("audio %s does not match unit %d: %w", path, i, audiobook.ErrValidation)
	}
	if !fileExists(p.Path(name)) {
		return fmt.Errorf("audio %s does not exist: %w", path, audiobook.ErrValidation)
	}
	return p.mutate(i, func(u *Unit) {
		u.AudioPath = name
		u.Generated = true
	})
}

// ClearAudio forgets the audio of unit i after its file was removed.
func (p *Project) ClearAudio(i int) error {
	return p.mutate(i, func(u *Unit) {
		u.AudioPath = ""
		u.Generated = false
	})
}

func (p *Project) ResetRegen() error {
	for i := range p.units.units {
		p.units.units[i].Regen = false
	}
	return p.Save()
}

// ApplyReplacements rewrites every sentence with the replacement list and,
// when extras is set, the sanitization pipeline. Changed units are flagged for
// regeneration. It returns the changed indices.
func (p *Project) ApplyReplacements(list []textnorm.Replacement, extras bool, abbreviations []i18n.Abbreviation) ([]int, error) {
	replacer, err := textnorm.NewReplacer(list)
	if err != nil {
		return nil, err
	}
	normalizer := textnorm.Normalizer{
		Replacer:      replacer,
		Extras:        extras,
		Abbreviations: abbreviations,
	}

	changed := []int{}
	for i := range p.units.units {
		u := &p.units.units[i]
		text := normalizer.Normalize(u.Sentence)
		if text == u.Sentence {
			continue
		}
		u.Sentence = text
		u.Regen = true
		u.Generated = false
		changed = append(changed, i)
	}

	if len(changed) == 0 {
		return changed, nil
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	return changed, p.WriteBookText()
}

// DeleteSpeaker removes a speaker and hands its units to the narrator.
func (p *Project) DeleteSpeaker(id speaker.ID) error {
	if err := p.settings.Speakers.Delete(id); err != nil {
		return err
	}
	for i := range p.units.units {
		if p.units.units[i].SpeakerID == id {
			p.units.units[i].SpeakerID = speaker.NarratorID
		}
	}
	if err := p.Save(); err != nil {
		return err
	}
	return p.SaveSettings()
}

// Delete removes the given units, renumbers the rest and moves their audio
// files to the new indices. The deleted units' audio is removed.
func (p *Project) Delete(indices ...int) error {
	victims := make(map[int]bool, len(indices))
	for _, i := range indices {
		if err := p.units.check(i); err != nil {
			return err
		}
		victims[i] = true
	}
	if len(victims) == 0 {
		return nil
	}

	var survivors []Unit
	var renames []rename
	var removals []string
	for _, u := range p.units.units {
		if victims[u.Index] {
			removals = append(removals, AudioFileName(u.Index))
			continue
		}
		newIndex := len(survivors)
		if newIndex != u.Index && fileExists(p.Path(AudioFileName(u.Index))) {
			renames = append(renames, rename{from: AudioFileName(u.Index), to: AudioFileName(newIndex)})
		}
		if u.AudioPath != "" {
			u.AudioPath = AudioFileName(newIndex)
		}
		survivors = append(survivors, u)
	}

	if err := applyRenames(p.dir, renames, removals); err != nil {
		return err
	}
	p.units.replace(survivors)
	if err := p.Save(); err != nil {
		return err
	}
	return p.WriteBookText()
}

// WorkPath returns the scratch directory for temporary synthesis output,
// creating it if needed.
func (p *Project) WorkPath() (string, error) {
	dir := p.Path(WorkDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w: %w", audiobook.ErrProjectIO, err)
	}
	return dir, nil
}

// CleanWork removes the scratch directory.
func (p *Project) CleanWork() {
	if err := os.RemoveAll(p.Path(WorkDir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove work directory", "dir", p.Path(WorkDir), slog.Any("err", err))
	}
}

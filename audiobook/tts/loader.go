package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
)

type handleKey struct {
	name      string
	speakerID speaker.ID
	hash      uint64
}

// Loader keeps at most one loaded handle per family. Asking for the same
// engine, speaker and load-relevant settings again returns the loaded handle.
// A Loader belongs to a single worker and is not safe for concurrent use.
type Loader struct {
	registry *EngineRegistry
	catalog  *Catalog

	// WrapEngine, when set, decorates every newly loaded engine.
	WrapEngine func(Engine) Engine
	// OnLoad is called after every successful load, not on reuse.
	OnLoad func(kind Kind, name string)

	engine    Engine
	engineKey handleKey

	converter    VoiceConverter
	converterKey handleKey
}

func NewLoader(registry *EngineRegistry, catalog *Catalog) *Loader {
	return &Loader{
		registry: registry,
		catalog:  catalog,
	}
}

// Settings returns settings layered over the catalog defaults of the engine.
func (l *Loader) Settings(kind Kind, name string, settings speaker.Settings) speaker.Settings {
	return l.catalog.WithDefaults(kind, name, settings)
}

func (l *Loader) LoadEngine(ctx context.Context, name string, speakerID speaker.ID, settings speaker.Settings) (Engine, error) {
	factory, err := l.registry.Engine(name)
	if err != nil {
		return nil, err
	}

	settings = l.Settings(KindTTS, name, settings)
	key, err := l.key(KindTTS, name, speakerID, settings)
	if err != nil {
		return nil, err
	}
	if l.engine != nil && l.engineKey == key {
		return l.engine, nil
	}

	closeHandle(l.engine)
	l.engine = nil

	engine, err := factory(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to load tts engine %q: %w: %w", name, audiobook.ErrEngine, err)
	}
	if l.WrapEngine != nil {
		engine = l.WrapEngine(engine)
	}
	l.engine, l.engineKey = engine, key
	l.loaded(KindTTS, name, speakerID)
	return engine, nil
}

func (l *Loader) LoadConverter(ctx context.Context, name string, speakerID speaker.ID, settings speaker.Settings) (VoiceConverter, error) {
	factory, err := l.registry.Converter(name)
	if err != nil {
		return nil, err
	}

	settings = l.Settings(KindS2S, name, settings)
	key, err := l.key(KindS2S, name, speakerID, settings)
	if err != nil {
		return nil, err
	}
	if l.converter != nil && l.converterKey == key {
		return l.converter, nil
	}

	closeHandle(l.converter)
	l.converter = nil

	converter, err := factory(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to load s2s engine %q: %w: %w", name, audiobook.ErrEngine, err)
	}
	l.converter, l.converterKey = converter, key
	l.loaded(KindS2S, name, speakerID)
	return converter, nil
}

// Close releases both loaded handles.
func (l *Loader) Close() {
	closeHandle(l.engine)
	closeHandle(l.converter)
	l.engine, l.converter = nil, nil
}

func (l *Loader) loaded(kind Kind, name string, speakerID speaker.ID) {
	slog.Info("Loaded engine", "kind", kind, "engine", name, "speakerID", speakerID)
	if l.OnLoad != nil {
		l.OnLoad(kind, name)
	}
}

func (l *Loader) key(kind Kind, name string, speakerID speaker.ID, settings speaker.Settings) (handleKey, error) {
	hash, err := SettingsHash(l.catalog.LoadRelevant(kind, name, settings))
	if err != nil {
		return handleKey{}, fmt.Errorf("settings of %q are not serializable: %w: %w", name, audiobook.ErrConfig, err)
	}
	return handleKey{name: name, speakerID: speakerID, hash: hash}, nil
}

// SettingsHash is the FNV-64a hash of the canonical JSON form of settings.
// encoding/json sorts map keys, which makes the form canonical.
func SettingsHash(settings speaker.Settings) (uint64, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64(), nil
}

func closeHandle(handle any) {
	closer, ok := handle.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close engine handle", slog.Any("err", err))
	}
}

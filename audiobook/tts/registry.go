package tts

import (
	"fmt"
	"maps"
	"slices"

	"github.com/makeitchaccha/audiobook/audiobook"
)

// ErrUnknownEngine is returned for names without a registered factory.
var ErrUnknownEngine = fmt.Errorf("unknown engine: %w", audiobook.ErrConfig)

type EngineRegistry struct {
	engines    map[string]EngineFactory
	converters map[string]ConverterFactory
}

func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{
		engines:    make(map[string]EngineFactory),
		converters: make(map[string]ConverterFactory),
	}
}

func (r *EngineRegistry) RegisterEngine(name string, factory EngineFactory) error {
	if _, ok := r.engines[name]; ok {
		return fmt.Errorf("tts engine already registered: %s", name)
	}
	r.engines[name] = factory
	return nil
}

func (r *EngineRegistry) RegisterConverter(name string, factory ConverterFactory) error {
	if _, ok := r.converters[name]; ok {
		return fmt.Errorf("s2s engine already registered: %s", name)
	}
	r.converters[name] = factory
	return nil
}

func (r *EngineRegistry) Engine(name string) (EngineFactory, error) {
	factory, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("tts engine %q: %w", name, ErrUnknownEngine)
	}
	return factory, nil
}

func (r *EngineRegistry) Converter(name string) (ConverterFactory, error) {
	factory, ok := r.converters[name]
	if !ok {
		return nil, fmt.Errorf("s2s engine %q: %w", name, ErrUnknownEngine)
	}
	return factory, nil
}

func (r *EngineRegistry) HasEngine(name string) bool {
	_, ok := r.engines[name]
	return ok
}

func (r *EngineRegistry) HasConverter(name string) bool {
	_, ok := r.converters[name]
	return ok
}

func (r *EngineRegistry) EngineNames() []string {
	return slices.Sorted(maps.Keys(r.engines))
}

func (r *EngineRegistry) ConverterNames() []string {
	return slices.Sorted(maps.Keys(r.converters))
}

// NewDefaultEngineRegistry registers the engines shipped with the application.
func NewDefaultEngineRegistry() *EngineRegistry {
	r := NewEngineRegistry()
	// names are distinct constants, registration cannot fail
	_ = r.RegisterEngine(GoogleEngineName, GoogleFactory)
	_ = r.RegisterEngine(CommandEngineName, CommandFactory)
	_ = r.RegisterConverter(CommandEngineName, CommandConverterFactory)
	return r
}

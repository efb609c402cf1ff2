package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/export"
	"github.com/makeitchaccha/audiobook/audiobook/generation"
	"github.com/makeitchaccha/audiobook/audiobook/i18n"
	"github.com/makeitchaccha/audiobook/audiobook/library"
	"github.com/makeitchaccha/audiobook/audiobook/observe"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/tts"
)

// App holds the state shared by every command. Dependencies are created on
// first use so that commands which only touch project files never connect to
// a database or Redis.
type App struct {
	Version string
	Commit  string

	ConfigPath  string
	ProjectDir  string
	ShowMetrics bool

	// SetupLogger is called once the config is loaded.
	SetupLogger func(cfg audiobook.LogConfig) error
	// Registry overrides the built-in engines.
	Registry *tts.EngineRegistry

	Config   *audiobook.Config
	Provider *observe.Provider

	metrics  *observe.Metrics
	catalog  *tts.Catalog
	speech   *i18n.SpeechResources
	db       *sqlx.DB
	projects library.ProjectRepository
	runs     library.RunRepository
	redis    *redis.Client
	cache    *cache.Cache
}

func NewApp(version, commit string) *App {
	return &App{
		Version:    version,
		Commit:     commit,
		ConfigPath: "config.toml",
	}
}

// LoadConfig reads the config file. A missing file falls back to defaults.
func (a *App) LoadConfig() error {
	if a.Config != nil {
		return nil
	}

	fromFile := true
	cfg, err := audiobook.LoadConfig(a.ConfigPath)
	if err != nil {
		if _, statErr := os.Stat(a.ConfigPath); !errors.Is(statErr, os.ErrNotExist) {
			return err
		}
		cfg = audiobook.DefaultConfig()
		fromFile = false
	}
	a.Config = cfg

	if a.SetupLogger != nil {
		if err := a.SetupLogger(cfg.Log); err != nil {
			return err
		}
	}
	slog.Debug("Loaded config", "path", a.ConfigPath, "fromFile", fromFile)
	return nil
}

func (a *App) Metrics() *observe.Metrics {
	if a.metrics != nil {
		return a.metrics
	}
	if a.Provider == nil {
		a.Provider = observe.InitProvider()
	}
	metrics, err := observe.NewMetrics(a.Provider.MeterProvider)
	if err != nil {
		slog.Warn("failed to create metrics, using global provider", slog.Any("err", err))
		metrics = observe.DefaultMetrics()
	}
	a.metrics = metrics
	return a.metrics
}

// Project resolves --project, failing with ErrValidation when it is unset.
func (a *App) Project() (*project.Project, error) {
	if a.ProjectDir == "" {
		return nil, fmt.Errorf("no project selected, pass --project: %w", audiobook.ErrValidation)
	}
	p, err := project.Open(a.ProjectDir)
	if err != nil {
		return nil, err
	}
	a.touch(context.Background(), p)
	return p, nil
}

func (a *App) Speech() *i18n.SpeechResources {
	if a.speech != nil {
		return a.speech
	}
	resources, err := i18n.LoadSpeechResources(a.Config.Speech.Resources)
	if err != nil {
		slog.Warn("failed to load speech resources, using defaults", "dir", a.Config.Speech.Resources, slog.Any("err", err))
		return nil
	}
	a.speech = resources
	return a.speech
}

func (a *App) Abbreviations() []i18n.Abbreviation {
	return a.Speech().Abbreviations(a.Config.Speech.Locale)
}

func (a *App) Catalog() (*tts.Catalog, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}
	catalog, err := tts.LoadCatalog(a.Config.Engines.TTSConfig, a.Config.Engines.S2SConfig)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog
	return a.catalog, nil
}

func (a *App) EngineRegistry() *tts.EngineRegistry {
	if a.Registry == nil {
		a.Registry = tts.NewDefaultEngineRegistry()
	}
	return a.Registry
}

// Engines assembles the engine layer, wrapping every TTS engine in the
// synthesis cache when Redis is enabled.
func (a *App) Engines(ctx context.Context) (generation.Engines, error) {
	catalog, err := a.Catalog()
	if err != nil {
		return generation.Engines{}, err
	}
	registry := a.EngineRegistry()
	if err := catalog.Validate(registry); err != nil {
		slog.Warn("engine catalog mentions unknown engines", slog.Any("err", err))
	}

	engines := generation.Engines{
		Registry: registry,
		Catalog:  catalog,
		Metrics:  a.Metrics(),
	}

	if !a.Config.Redis.Enabled {
		slog.Info("Redis is disabled, no cache will be used")
		return engines, nil
	}
	redisCache, err := a.redisCache(ctx)
	if err != nil {
		return generation.Engines{}, err
	}
	ttl := a.Config.Redis.TTL
	engines.WrapEngine = func(e tts.Engine) tts.Engine {
		return tts.NewCachedEngine(e, redisCache, ttl)
	}
	return engines, nil
}

func (a *App) redisCache(ctx context.Context) (*cache.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}

	slog.Info("Connecting to Redis")
	options, err := redis.ParseURL(a.Config.Redis.Url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w: %w", audiobook.ErrConfig, err)
	}
	client := redis.NewClient(options)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w: %w", audiobook.ErrConfig, err)
	}
	slog.Info("Connected to Redis")

	a.redis = client
	a.cache = cache.New(&cache.Options{
		Redis:      client,
		LocalCache: cache.NewTinyLFU(5, time.Minute),
	})
	return a.cache, nil
}

// Library returns the project and run repositories, or no-op ones when the
// database is disabled.
func (a *App) Library(ctx context.Context) (library.ProjectRepository, library.RunRepository, error) {
	if a.projects != nil {
		return a.projects, a.runs, nil
	}
	if !a.Config.Database.Enabled {
		a.projects, a.runs = library.NopProjectRepository{}, library.NopRunRepository{}
		return a.projects, a.runs, nil
	}

	db, dialect, err := library.Open(ctx, a.Config.Database.Driver, a.Config.Database.Dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open project library: %w: %w", audiobook.ErrConfig, err)
	}
	a.db = db
	a.projects = library.NewProjectRepository(db, dialect.Placeholder)
	a.runs = library.NewRunRepository(db, dialect.Placeholder)
	return a.projects, a.runs, nil
}

// touch records the project in the library. Failures only warn.
func (a *App) touch(ctx context.Context, p *project.Project) {
	projects, _, err := a.Library(ctx)
	if err != nil {
		slog.Warn("project library unavailable", slog.Any("err", err))
		return
	}

	generated := 0
	for _, u := range p.Units() {
		if u.Generated {
			generated++
		}
	}
	now := time.Now()
	err = projects.Save(ctx, library.Entry{
		Directory: p.Dir(),
		Name:      p.Name(),
		Units:     p.Len(),
		Generated: generated,
		CreatedAt: now,
		OpenedAt:  now,
	})
	if err != nil {
		slog.Warn("failed to record project", "dir", p.Dir(), slog.Any("err", err))
	}
}

func (a *App) Composer() (*export.Composer, error) {
	concatenator, err := export.NewConcatenator(a.Config.Export.Format, a.Config.Export.FFmpegPath, a.Config.Export.Bitrate)
	if err != nil {
		return nil, err
	}
	return export.NewComposer(concatenator, a.Metrics()), nil
}

// Close releases connections opened by the commands.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("failed to close database", slog.Any("err", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("failed to close Redis client", slog.Any("err", err))
		}
	}
	if a.Provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Provider.Shutdown(ctx); err != nil {
			slog.Warn("failed to shut down meter provider", slog.Any("err", err))
		}
	}
}

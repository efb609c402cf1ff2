package audiobook

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config values,
// e.g. AUDIOBOOK_LOG_LEVEL=debug.
const EnvPrefix = "AUDIOBOOK"

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w: %w", path, ErrConfig, err)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w: %w", path, ErrConfig, err)
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	// defaults are static and always decodable
	_ = v.Unmarshal(&cfg, hook)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)

	v.SetDefault("engines.tts_config", "configs/tts_config.json")
	v.SetDefault("engines.s2s_config", "configs/s2s_config.json")

	v.SetDefault("generation.pause_duration", 0.5)
	v.SetDefault("generation.regen_retries", 10)
	v.SetDefault("generation.regen_backoff", "100ms")

	v.SetDefault("export.format", "mp3")
	v.SetDefault("export.ffmpeg_path", "ffmpeg")
	v.SetDefault("export.bitrate", "192k")

	v.SetDefault("speech.resources", "locales/speech")
	v.SetDefault("speech.locale", "en-US")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "audiobook.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("preferences.path", "settings.json")
}

type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Engines     EnginesConfig     `mapstructure:"engines"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Export      ExportConfig      `mapstructure:"export"`
	Speech      SpeechConfig      `mapstructure:"speech"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
}

type LogConfig struct {
	Level     slog.Level `mapstructure:"level"`
	Format    string     `mapstructure:"format"`
	AddSource bool       `mapstructure:"add_source"`
}

type EnginesConfig struct {
	TTSConfig string `mapstructure:"tts_config"`
	S2SConfig string `mapstructure:"s2s_config"`
}

type GenerationConfig struct {
	PauseDuration float64       `mapstructure:"pause_duration"`
	RegenRetries  uint64        `mapstructure:"regen_retries"`
	RegenBackoff  time.Duration `mapstructure:"regen_backoff"`
}

type ExportConfig struct {
	Format     string `mapstructure:"format"` // "mp3" or "wav"
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	Bitrate    string `mapstructure:"bitrate"`
}

type SpeechConfig struct {
	Resources string `mapstructure:"resources"`
	Locale    string `mapstructure:"locale"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	Dsn     string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Url     string        `mapstructure:"url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type PreferencesConfig struct {
	Path string `mapstructure:"path"`
}

// Package config loads knolrev settings from defaults, an optional YAML file,
// KNOLREV_ environment variables and command-line flags, in that order.
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Timezones resolve without system zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable. A double underscore
// separates nesting levels: KNOLREV_DATABASE__DSN sets database.dsn.
const EnvPrefix = "KNOLREV_"

// Config is the complete runtime configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Progress ProgressConfig `koanf:"progress"`
	Log      LogConfig      `koanf:"log"`
	Deck     DeckConfig     `koanf:"deck"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite sqlite3 postgres postgresql mysql"`
	DSN    string `koanf:"dsn" validate:"required"`
}

// SessionConfig tunes revision sessions.
type SessionConfig struct {
	DefaultMaxCards int `koanf:"default_max_cards" validate:"gte=1,lte=500"`
	MaxAttempts     int `koanf:"max_attempts" validate:"gte=1,lte=10"`
}

// ProgressConfig tunes progress reporting.
type ProgressConfig struct {
	Timezone         string `koanf:"timezone" validate:"required"`
	MasteryThreshold int    `koanf:"mastery_threshold" validate:"gte=1,lte=100"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// DeckConfig locates git deck checkouts.
type DeckConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "knolrev.db"},
		Session:  SessionConfig{DefaultMaxCards: 10, MaxAttempts: 3},
		Progress: ProgressConfig{Timezone: "UTC", MasteryThreshold: 80},
		Log:      LogConfig{Level: "info", Format: "text"},
		Deck:     DeckConfig{ReposDir: "repos"},
	}
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"driver":    "database.driver",
	"db":        "database.dsn",
	"log-level": "log.level",
	"timezone":  "progress.timezone",
	"repos-dir": "deck.repos_dir",
}

// Load builds the configuration. path may be empty to skip the file, and
// flags may be nil. Only flags set explicitly override earlier sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(key), "__", ".")
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the progress timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Progress.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", c.Progress.Timezone)
	}
	return loc, nil
}

// NewLogger builds the slog logger described by c, writing to w
// (stderr when nil).
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Package config loads schemasync settings from defaults, an optional YAML
// file, SCHEMASYNC_ environment variables and command-line flags.
//
// Precedence (highest to lowest): flags > env vars > config file > defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/video"
)

const (
	// DefaultDatabase is the database file, relative to the working directory
	DefaultDatabase = "database.sqlite"
	// DefaultConfigFile is looked up in the working directory when --config is not given
	DefaultConfigFile = "schemasync.yaml"
	// EnvPrefix prefixes every environment variable override
	EnvPrefix = "SCHEMASYNC_"
)

// Config holds all schemasync settings
type Config struct {
	Database  string       `koanf:"database"`
	Registry  string       `koanf:"registry"`
	LogLevel  string       `koanf:"log_level"`
	LogFormat string       `koanf:"log_format"`
	Pragmas   db.Pragmas   `koanf:"pragmas"`
	Limits    video.Limits `koanf:"limits"`
}

func defaults() map[string]any {
	p := db.DefaultPragmas()
	l := video.DefaultLimits()
	return map[string]any{
		"database":             DefaultDatabase,
		"registry":             "",
		"log_level":            "info",
		"log_format":           "text",
		"pragmas.foreign_keys": p.ForeignKeys,
		"pragmas.journal_mode": p.JournalMode,
		"pragmas.synchronous":  p.Synchronous,
		"pragmas.cache_size":   p.CacheSize,
		"limits.max_duration":  l.MaxDuration,
		"limits.min_duration":  l.MinDuration,
		"limits.max_size":      l.MaxSize,
	}
}

// Load reads the configuration. cfgFile may be empty, in which case
// schemasync.yaml is used if present. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	explicit := cfgFile != ""
	if !explicit {
		cfgFile = DefaultConfigFile
	}
	if _, err := os.Stat(cfgFile); err == nil {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
	}

	// 3. Environment: SCHEMASYNC_LOG_LEVEL -> log_level, SCHEMASYNC_PRAGMAS__CACHE_SIZE -> pragmas.cache_size
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values every command needs. Limits are checked by the
// catalog that uses them.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (must be 'text' or 'json')", c.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

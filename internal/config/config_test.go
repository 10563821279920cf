package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("database", "", "")
	fs.String("registry", "", "")
	fs.String("log-level", "", "")
	fs.String("log-format", "", "")
	return fs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, "", cfg.Registry)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.Pragmas.ForeignKeys)
	assert.Equal(t, "WAL", cfg.Pragmas.JournalMode)
	assert.Equal(t, "NORMAL", cfg.Pragmas.Synchronous)
	assert.Equal(t, -2000, cfg.Pragmas.CacheSize)
	assert.Equal(t, int64(300), cfg.Limits.MaxDuration)
	assert.Equal(t, int64(4), cfg.Limits.MinDuration)
	assert.Equal(t, int64(25*1024*1024), cfg.Limits.MaxSize)
}

func TestLoadPicksUpDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, DefaultConfigFile), `
database: data/catalog.sqlite
pragmas:
  journal_mode: DELETE
limits:
  max_duration: 600
`)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "data/catalog.sqlite", cfg.Database)
	assert.Equal(t, "DELETE", cfg.Pragmas.JournalMode)
	assert.Equal(t, "NORMAL", cfg.Pragmas.Synchronous, "unset keys keep their defaults")
	assert.Equal(t, int64(600), cfg.Limits.MaxDuration)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "custom.yaml")
	writeFile(t, cfgPath, `
database: file.sqlite
log_level: warn
log_format: json
pragmas:
  cache_size: -1000
`)

	t.Setenv("SCHEMASYNC_DATABASE", "env.sqlite")
	t.Setenv("SCHEMASYNC_LOG_LEVEL", "debug")
	t.Setenv("SCHEMASYNC_PRAGMAS__CACHE_SIZE", "-4000")
	t.Setenv("SCHEMASYNC_PRAGMAS__FOREIGN_KEYS", "false")

	fs := newFlagSet()
	require.NoError(t, fs.Set("database", "flag.sqlite"))

	cfg, err := Load(cfgPath, fs)
	require.NoError(t, err)

	assert.Equal(t, "flag.sqlite", cfg.Database, "flags beat env vars")
	assert.Equal(t, "debug", cfg.LogLevel, "env vars beat the config file")
	assert.Equal(t, "json", cfg.LogFormat, "the config file beats defaults")
	assert.Equal(t, -4000, cfg.Pragmas.CacheSize)
	assert.False(t, cfg.Pragmas.ForeignKeys)
}

func TestLoadIgnoresUnsetFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCHEMASYNC_LOG_FORMAT", "json")

	cfg, err := Load("", newFlagSet())
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, DefaultDatabase, cfg.Database)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{name: "invalid log level", env: map[string]string{"SCHEMASYNC_LOG_LEVEL": "loud"}, wantErr: "invalid log level"},
		{name: "invalid log format", env: map[string]string{"SCHEMASYNC_LOG_FORMAT": "xml"}, wantErr: "invalid log format"},
		{name: "malformed file", file: "database: [unclosed\n", wantErr: "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				writeFile(t, filepath.Join(dir, DefaultConfigFile), tt.file)
			}

			_, err := Load("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("does-not-exist.yaml", nil)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

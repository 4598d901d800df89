package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Store:   StoreConfig{Path: "./journal.db", OpenTimeout: 10 * time.Second},
		Server:  ServerConfig{Port: 8080},
		Remote:  RemoteConfig{Timeout: 10 * time.Second},
		Log:     LogConfig{Level: "info"},
		Journal: JournalConfig{Timezone: "UTC"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errorString string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "in memory needs no path", mutate: func(c *Config) { c.Store.Path = ""; c.Store.InMemory = true }},
		{
			name:        "empty path",
			mutate:      func(c *Config) { c.Store.Path = " " },
			errorString: "store.path cannot be empty",
		},
		{
			name:        "port out of range",
			mutate:      func(c *Config) { c.Server.Port = 70000 },
			errorString: "invalid server.port 70000",
		},
		{
			name:        "bad remote url",
			mutate:      func(c *Config) { c.Remote.URL = "ftp://example.com" },
			errorString: "invalid remote.url",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Log.Level = "loud" },
			errorString: "invalid log.level 'loud'",
		},
		{
			name:        "bad timezone",
			mutate:      func(c *Config) { c.Journal.Timezone = "Mars/Olympus" },
			errorString: "invalid journal.timezone",
		},
		{
			name:        "zero open timeout",
			mutate:      func(c *Config) { c.Store.OpenTimeout = 0 },
			errorString: "invalid store.open_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Store.OpenTimeout)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Store.InMemory)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  path: /tmp/journal-test.db
  open_timeout: 3s
server:
  port: 9090
log:
  level: debug
`), 0o644))

	t.Setenv("JOURNAL_SERVER_PORT", "9191")
	t.Setenv("JOURNAL_REMOTE_URL", "https://config.example.com/")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/journal-test.db", cfg.Store.Path)
	assert.Equal(t, 3*time.Second, cfg.Store.OpenTimeout)
	assert.Equal(t, 9191, cfg.Server.Port, "environment beats the file")
	assert.Equal(t, "https://config.example.com/", cfg.Remote.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLocation(t *testing.T) {
	cfg := validConfig()
	cfg.Journal.Timezone = "Local"
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Journal.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

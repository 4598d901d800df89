// Package config loads journal settings from defaults, an optional YAML
// file, a .env file and JOURNAL_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. JOURNAL_STORE_PATH.
const EnvPrefix = "JOURNAL"

type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Server  ServerConfig  `mapstructure:"server"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Log     LogConfig     `mapstructure:"log"`
	Journal JournalConfig `mapstructure:"journal"`
}

type StoreConfig struct {
	Path        string        `mapstructure:"path"`
	InMemory    bool          `mapstructure:"in_memory"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// APISecret signs API bearer tokens. Empty disables authentication.
	APISecret string `mapstructure:"api_secret"`
}

type RemoteConfig struct {
	// URL of the redirect config endpoint. Empty disables the fetch.
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type JournalConfig struct {
	// Timezone is an IANA name or "Local". Calendar days are counted in it.
	Timezone string `mapstructure:"timezone"`
}

// DefaultStorePath is $HOME/.journal/journal.db, or ./journal.db when the
// home directory is unknown.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "journal.db"
	}
	return filepath.Join(home, ".journal", "journal.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.in_memory", false)
	v.SetDefault("store.open_timeout", 10*time.Second)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_secret", "")
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("journal.timezone", "Local")
}

// Load reads the configuration. path names an explicit config file; when
// empty, journal.yaml is looked up in the working directory and in
// $HOME/.journal, and a missing file is not an error.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("journal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".journal"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if !c.Store.InMemory && strings.TrimSpace(c.Store.Path) == "" {
		problems = append(problems, "store.path cannot be empty unless store.in_memory is set")
	}
	if c.Store.OpenTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid store.open_timeout %v: must be positive", c.Store.OpenTimeout))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server.port %d: must be between 1 and 65535", c.Server.Port))
	}
	if c.Remote.URL != "" {
		if u, err := url.Parse(c.Remote.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			problems = append(problems, fmt.Sprintf("invalid remote.url '%s': must be an http or https URL", c.Remote.URL))
		}
	}
	if c.Remote.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid remote.timeout %v: must be positive", c.Remote.Timeout))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Location resolves journal.timezone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Journal.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid journal.timezone '%s': %v", name, err)
	}
	return loc, nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log.level '%s': must be debug, info, warn or error", level)
}

package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Backend modes understood by [BackendConfig.Mode].
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Database  DatabaseConfig  `toml:"database"`
	Watchlist WatchlistConfig `toml:"watchlist"`
	Session   SessionConfig   `toml:"session"`
	Log       LogConfig       `toml:"log"`
}

// BackendConfig selects and configures the remote store.
type BackendConfig struct {
	Mode              string  `toml:"mode"`
	URL               string  `toml:"url"`
	AnonKey           string  `toml:"anon_key"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings for the sqlite and postgres backends.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// WatchlistConfig tunes the membership fetch retry policy.
type WatchlistConfig struct {
	RetryAttempts    int `toml:"retry_attempts"`
	RetryBaseDelayMS int `toml:"retry_base_delay_ms"`
}

// SessionConfig points at the persisted session file.
type SessionConfig struct {
	Path string `toml:"path"`
}

// LogConfig contains logger settings. File output is rotated.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// RetryBaseDelay returns the linear backoff unit.
func (w WatchlistConfig) RetryBaseDelay() time.Duration {
	if w.RetryBaseDelayMS <= 0 {
		return time.Second
	}
	return time.Duration(w.RetryBaseDelayMS) * time.Millisecond
}

// Timeout returns the HTTP client timeout for the rest backend.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Validate checks the fields required by the selected backend mode.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for the sqlite backend", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for the postgres backend", ErrInvalidConfig)
		}
	case BackendREST:
		if c.Backend.URL == "" || c.Backend.AnonKey == "" {
			return fmt.Errorf("%w: backend.url and backend.anon_key are required for the rest backend", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: unknown backend mode %q", ErrInvalidConfig, c.Backend.Mode)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

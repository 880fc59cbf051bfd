package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Backend.Mode != BackendSQLite {
			t.Errorf("expected backend mode sqlite, got %s", config.Backend.Mode)
		}

		if config.Database.Path != "./marquee.db" {
			t.Errorf("expected database path ./marquee.db, got %s", config.Database.Path)
		}

		if config.Watchlist.RetryAttempts != 3 {
			t.Errorf("expected 3 retry attempts, got %d", config.Watchlist.RetryAttempts)
		}

		if config.Watchlist.RetryBaseDelay() != time.Second {
			t.Errorf("expected 1s base delay, got %v", config.Watchlist.RetryBaseDelay())
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[backend]
mode = "rest"
url = "https://example.supabase.co"
anon_key = "anon"
requests_per_second = 2.5

[watchlist]
retry_base_delay_ms = 50
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Backend.Mode != BackendREST {
			t.Errorf("expected rest backend, got %s", config.Backend.Mode)
		}

		if config.Backend.RequestsPerSecond != 2.5 {
			t.Errorf("expected 2.5 requests per second, got %v", config.Backend.RequestsPerSecond)
		}

		if config.Watchlist.RetryBaseDelay() != 50*time.Millisecond {
			t.Errorf("expected 50ms base delay, got %v", config.Watchlist.RetryBaseDelay())
		}

		if config.Watchlist.RetryAttempts != 3 {
			t.Errorf("missing keys should keep defaults, got %d attempts", config.Watchlist.RetryAttempts)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			mutate  func(*Config)
			wantErr error
		}{
			{"unknown mode", func(c *Config) { c.Backend.Mode = "mongo" }, ErrInvalidConfig},
			{"postgres without dsn", func(c *Config) { c.Backend.Mode = BackendPostgres; c.Database.DSN = "" }, ErrInvalidConfig},
			{"rest without key", func(c *Config) { c.Backend.Mode = BackendREST; c.Backend.AnonKey = "" }, ErrMissingCredentials},
			{"sqlite without path", func(c *Config) { c.Database.Path = "" }, ErrInvalidConfig},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
				}
			})
		}
	})
}

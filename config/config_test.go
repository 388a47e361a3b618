package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("MATPRIS_BATCH_SIZE")
		os.Unsetenv("MATPRIS_BATCH_PER_STORE_LIMIT")
		os.Unsetenv("MATPRIS_BATCH_COOLDOWN_DAYS")
		os.Unsetenv("MATPRIS_BATCH_NO_MATCH_RECHECK_DAYS")
		os.Unsetenv("MATPRIS_DATABASE_DSN")
		os.Unsetenv("MATPRIS_BROWSER_HEADLESS")
		os.Unsetenv("MATPRIS_BROWSER_NAV_TIMEOUT")
		os.Unsetenv("MATPRIS_ORACLE_API_KEY")
		os.Unsetenv("MATPRIS_ORACLE_BASE_URL")
		os.Unsetenv("MATPRIS_ORACLE_MODEL")
		os.Unsetenv("MATPRIS_STATUS_ADDR")
	}

	t.Run("loads with defaults when only required vars set", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MATPRIS_DATABASE_DSN", "postgres://localhost/matpris")
		os.Setenv("MATPRIS_ORACLE_API_KEY", "test-key")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Batch.Size != 10 {
			t.Errorf("Batch.Size = %d, want 10", cfg.Batch.Size)
		}
		if cfg.Batch.PerStoreLimit != 5 {
			t.Errorf("Batch.PerStoreLimit = %d, want 5", cfg.Batch.PerStoreLimit)
		}
		if cfg.Batch.CooldownDays != 60 {
			t.Errorf("Batch.CooldownDays = %d, want 60", cfg.Batch.CooldownDays)
		}
		if cfg.Batch.NoMatchRecheckDays != 365 {
			t.Errorf("Batch.NoMatchRecheckDays = %d, want 365", cfg.Batch.NoMatchRecheckDays)
		}
		if !cfg.Browser.Headless {
			t.Errorf("Browser.Headless = false, want true")
		}
		if cfg.Browser.NavTimeout != 30*time.Second {
			t.Errorf("Browser.NavTimeout = %v, want 30s", cfg.Browser.NavTimeout)
		}
		if cfg.Oracle.BaseURL != "https://api.openai.com/v1" {
			t.Errorf("Oracle.BaseURL = %s, want OpenAI default", cfg.Oracle.BaseURL)
		}
		if cfg.Oracle.Model != "gpt-4o-mini" {
			t.Errorf("Oracle.Model = %s, want gpt-4o-mini", cfg.Oracle.Model)
		}
		if cfg.Status.Addr != "" {
			t.Errorf("Status.Addr = %s, want empty", cfg.Status.Addr)
		}
	})

	t.Run("fails without database DSN", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MATPRIS_ORACLE_API_KEY", "test-key")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want DSN validation error")
		}
	})

	t.Run("fails without oracle API key", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MATPRIS_DATABASE_DSN", "postgres://localhost/matpris")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want oracle key validation error")
		}
	})

	t.Run("env vars override defaults", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MATPRIS_DATABASE_DSN", "postgres://localhost/matpris")
		os.Setenv("MATPRIS_ORACLE_API_KEY", "test-key")
		os.Setenv("MATPRIS_BATCH_SIZE", "25")
		os.Setenv("MATPRIS_BATCH_COOLDOWN_DAYS", "14")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Batch.Size != 25 {
			t.Errorf("Batch.Size = %d, want 25", cfg.Batch.Size)
		}
		if cfg.Batch.Cooldown() != 14*24*time.Hour {
			t.Errorf("Cooldown() = %v, want 336h", cfg.Batch.Cooldown())
		}
	})

	t.Run("rejects non-positive batch size", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MATPRIS_DATABASE_DSN", "postgres://localhost/matpris")
		os.Setenv("MATPRIS_ORACLE_API_KEY", "test-key")
		os.Setenv("MATPRIS_BATCH_SIZE", "0")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want batch size validation error")
		}
	})
}

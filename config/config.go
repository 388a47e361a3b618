package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scraper job
type Config struct {
	Batch    BatchConfig
	Database DatabaseConfig
	Browser  BrowserConfig
	Oracle   OracleConfig
	Status   StatusConfig
}

// BatchConfig bounds one run and controls re-scrape eligibility
type BatchConfig struct {
	Size               int    `mapstructure:"size"`
	PerStoreLimit      int    `mapstructure:"per_store_limit"`
	CooldownDays       int    `mapstructure:"cooldown_days"`
	NoMatchRecheckDays int    `mapstructure:"no_match_recheck_days"`
	Environment        string `mapstructure:"environment"`
}

// DatabaseConfig holds the relational store connection settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// BrowserConfig holds the shared browser session settings
type BrowserConfig struct {
	Headless    bool          `mapstructure:"headless"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// OracleConfig holds the selection oracle endpoint settings
type OracleConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// StatusConfig holds the optional status endpoint settings
type StatusConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the listener
}

// Cooldown returns the re-scrape cooldown as a duration.
func (c BatchConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownDays) * 24 * time.Hour
}

// NoMatchRecheck returns the long recheck window for no-match ingredients.
func (c BatchConfig) NoMatchRecheck() time.Duration {
	return time.Duration(c.NoMatchRecheckDays) * 24 * time.Hour
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/matpris/")

	// Environment variable settings
	v.SetEnvPrefix("MATPRIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Batch defaults
	v.SetDefault("batch.size", 10)
	v.SetDefault("batch.per_store_limit", 5)
	v.SetDefault("batch.cooldown_days", 60)
	v.SetDefault("batch.no_match_recheck_days", 365)
	v.SetDefault("batch.environment", "development")

	// Browser defaults
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", "30s")
	v.SetDefault("browser.settle_delay", "4s")

	// Oracle defaults
	v.SetDefault("oracle.base_url", "https://api.openai.com/v1")
	v.SetDefault("oracle.model", "gpt-4o-mini")

	// Status endpoint disabled by default
	v.SetDefault("status.addr", "")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required (set MATPRIS_DATABASE_DSN)")
	}

	if config.Oracle.APIKey == "" {
		return fmt.Errorf("oracle API key is required (set MATPRIS_ORACLE_API_KEY)")
	}

	if config.Batch.Size <= 0 {
		return fmt.Errorf("batch size must be positive, got: %d", config.Batch.Size)
	}

	if config.Batch.PerStoreLimit <= 0 {
		return fmt.Errorf("per-store limit must be positive, got: %d", config.Batch.PerStoreLimit)
	}

	if config.Batch.CooldownDays <= 0 || config.Batch.NoMatchRecheckDays <= 0 {
		return fmt.Errorf("cooldown windows must be positive")
	}

	return nil
}

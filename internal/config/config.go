// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the service needs to start. Values come from
// environment variables, optionally seeded from a .env file.
type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabasePath        string        `mapstructure:"DATABASE_PATH"`
	PanelAppURL         string        `mapstructure:"PANELAPP_URL"`
	VariantValidatorURL string        `mapstructure:"VARIANTVALIDATOR_URL"`
	RateLimitFile       string        `mapstructure:"RATE_LIMIT_FILE"`
	ProblemGeneFile     string        `mapstructure:"PROBLEM_GENE_FILE"`
	SyncInterval        time.Duration `mapstructure:"SYNC_INTERVAL"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DebugSQL            bool          `mapstructure:"DEBUG_SQL"`
}

// Load reads configuration from the environment, with a .env file as an
// optional overlay for local development.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "5001")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_PATH", "paneltrack.db")
	v.SetDefault("PANELAPP_URL", "")
	v.SetDefault("VARIANTVALIDATOR_URL", "")
	v.SetDefault("RATE_LIMIT_FILE", "")
	v.SetDefault("PROBLEM_GENE_FILE", "")
	v.SetDefault("SYNC_INTERVAL", 7*24*time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEBUG_SQL", false)

	for _, key := range []string{
		"PORT", "ENV", "DATABASE_PATH", "PANELAPP_URL", "VARIANTVALIDATOR_URL",
		"RATE_LIMIT_FILE", "PROBLEM_GENE_FILE", "SYNC_INTERVAL", "LOG_LEVEL", "DEBUG_SQL",
	} {
		_ = v.BindEnv(key)
	}

	// The .env file is a convenience, not a requirement.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDev reports whether the service runs in development mode, which
// switches logging to human readable console output.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.SyncInterval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least one minute, got %s", c.SyncInterval)
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}

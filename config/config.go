// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/paymock/domain/chaos"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Clock    ClockConfig    `yaml:"clock"`
	Chaos    chaos.Update   `yaml:"chaos"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures record storage.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// ClockConfig configures the virtual clock's starting mode.
type ClockConfig struct {
	Mode       string  `yaml:"mode"` // "real", "accelerated" or "manual"
	Multiplier float64 `yaml:"multiplier"`
	StartAt    int64   `yaml:"start_at"` // unix seconds; manual mode only, 0 = current time
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// The mock runs fine with zero configuration, so every variable is optional.
//
// Environment variables:
//
//	PAYMOCK_SERVER_HOST      - Server host (default: 0.0.0.0)
//	PAYMOCK_SERVER_PORT      - Server port (default: 8420)
//	PAYMOCK_DATABASE_DRIVER  - Storage driver: memory or sqlite (default: memory)
//	PAYMOCK_DATABASE_DSN     - SQLite path (default: paymock.db)
//	PAYMOCK_CLOCK_MODE       - Clock mode: real, accelerated or manual (default: real)
//	PAYMOCK_CLOCK_MULTIPLIER - Acceleration factor (default: 1)
//	PAYMOCK_LOG_LEVEL        - Log level: debug, info, warn, error (default: info)
//	PAYMOCK_LOG_FORMAT       - Log format: json or console (default: json)
//	PAYMOCK_METRICS_ENABLED  - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables and defaults when the file does not exist.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies PAYMOCK_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("PAYMOCK_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PAYMOCK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PAYMOCK_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("PAYMOCK_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("PAYMOCK_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PAYMOCK_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Clock configuration
	if v := os.Getenv("PAYMOCK_CLOCK_MODE"); v != "" {
		cfg.Clock.Mode = v
	}
	if v := os.Getenv("PAYMOCK_CLOCK_MULTIPLIER"); v != "" {
		if m, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Clock.Multiplier = m
		}
	}
	if v := os.Getenv("PAYMOCK_CLOCK_START_AT"); v != "" {
		if at, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Clock.StartAt = at
		}
	}

	// Logging configuration
	if v := os.Getenv("PAYMOCK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PAYMOCK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("PAYMOCK_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("PAYMOCK_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8420
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Injected timeouts can hold a response for the full simulated
		// duration, so the write timeout stays generous.
		cfg.Server.WriteTimeout = 120 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "paymock.db"
	}

	if cfg.Clock.Mode == "" {
		cfg.Clock.Mode = "real"
	}
	if cfg.Clock.Multiplier == 0 {
		cfg.Clock.Multiplier = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"memory": true, "sqlite": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'memory' or 'sqlite', got %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.driver is 'sqlite'")
	}

	validClockModes := map[string]bool{"real": true, "accelerated": true, "manual": true}
	if !validClockModes[cfg.Clock.Mode] {
		return fmt.Errorf("clock.mode must be 'real', 'accelerated' or 'manual', got %q", cfg.Clock.Mode)
	}
	if cfg.Clock.Mode == "accelerated" && cfg.Clock.Multiplier <= 0 {
		return fmt.Errorf("clock.multiplier must be positive, got %v", cfg.Clock.Multiplier)
	}

	// The chaos section is a partial update; merging it over the defaults
	// exercises the same validation the runtime endpoint uses.
	if _, err := chaos.Merge(chaos.DefaultConfig(), cfg.Chaos); err != nil {
		return fmt.Errorf("chaos: %w", err)
	}

	return nil
}

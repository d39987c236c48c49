// Package config provides configuration types and defaults for routecard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"routecard/internal/log"
)

// Config holds all configuration options for routecard.
type Config struct {
	// DBPath points at the routing database file.
	// Default: .routecard/routecard.db relative to the working directory.
	DBPath string `mapstructure:"db_path"`

	// AutoRefresh flushes caches when an external writer touches the
	// database file.
	AutoRefresh bool `mapstructure:"auto_refresh"`

	// DefaultVersion is assigned to new routings created without an
	// explicit version.
	DefaultVersion string `mapstructure:"default_version"`

	Cache   CacheConfig     `mapstructure:"cache"`
	Tracing TracingConfig   `mapstructure:"tracing"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// CacheConfig holds resolve-cache settings.
type CacheConfig struct {
	// Enabled controls the read-through cache in front of production
	// routing resolution. Default: true.
	Enabled bool `mapstructure:"enabled"`

	// TTL is how long a resolved routing stays cached.
	// Default: 10m
	TTL time.Duration `mapstructure:"ttl"`

	// CleanupInterval is how often expired entries are evicted.
	// Default: 30m
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/routecard/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// 1.0 = all traces, 0.1 = 10% of traces
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/routecard/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "routecard", "traces", "traces.jsonl")
}

// DefaultDBPath returns the default database location relative to the
// working directory.
func DefaultDBPath() string {
	return filepath.Join(".routecard", "routecard.db")
}

// ValidateCache checks cache configuration for errors.
// Returns nil if the configuration is valid (zero values use defaults).
func ValidateCache(cache CacheConfig) error {
	if cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %v", cache.TTL)
	}
	if cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative, got %v", cache.CleanupInterval)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	// Validate SampleRate is in range [0.0, 1.0]
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	// Validate Exporter is a valid option
	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		// FilePath is required when Exporter is "file"
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}

		// OTLPEndpoint is required when Exporter is "otlp"
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Validate checks the whole configuration for errors.
func Validate(c Config) error {
	if c.DefaultVersion == "" {
		return fmt.Errorf("default_version must not be empty")
	}
	if err := ValidateCache(c.Cache); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		DBPath:         DefaultDBPath(),
		AutoRefresh:    true,
		DefaultVersion: "1.0",
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             10 * time.Minute,
			CleanupInterval: 30 * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Routecard Configuration

# Path to the routing database file
# db_path: .routecard/routecard.db

# Flush caches when the database file changes on disk
auto_refresh: true

# Version assigned to routings created without an explicit version
default_version: "1.0"

# Resolve-cache settings
cache:
  enabled: true          # Cache production routing resolution
  ttl: 10m               # How long a resolved routing stays cached
  cleanup_interval: 30m  # How often expired entries are evicted

# Distributed tracing configuration
# Enables end-to-end visibility into routing operations
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/routecard/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	// Create parent directory if needed
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write the template
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routecard/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Defaults()

	assert.Equal(t, filepath.Join(".routecard", "routecard.db"), cfg.DBPath)
	assert.True(t, cfg.AutoRefresh)
	assert.Equal(t, "1.0", cfg.DefaultVersion)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 30*time.Minute, cfg.Cache.CleanupInterval)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "file", cfg.Tracing.Exporter)
	assert.Equal(t, "localhost:4317", cfg.Tracing.OTLPEndpoint)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, config.Validate(config.Defaults()))
}

func TestValidate_EmptyDefaultVersion(t *testing.T) {
	cfg := config.Defaults()
	cfg.DefaultVersion = ""

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_version")
}

func TestValidateCache(t *testing.T) {
	tests := []struct {
		name    string
		cache   config.CacheConfig
		wantErr bool
	}{
		{
			name:  "zero values valid",
			cache: config.CacheConfig{},
		},
		{
			name:  "positive durations valid",
			cache: config.CacheConfig{Enabled: true, TTL: time.Minute, CleanupInterval: time.Hour},
		},
		{
			name:    "negative ttl invalid",
			cache:   config.CacheConfig{TTL: -time.Second},
			wantErr: true,
		},
		{
			name:    "negative cleanup interval invalid",
			cache:   config.CacheConfig{CleanupInterval: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateCache(tt.cache)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		tracing config.TracingConfig
		wantErr string
	}{
		{
			name:    "empty config valid",
			tracing: config.TracingConfig{},
		},
		{
			name:    "valid exporters",
			tracing: config.TracingConfig{Exporter: "stdout", SampleRate: 0.5},
		},
		{
			name:    "invalid exporter",
			tracing: config.TracingConfig{Exporter: "jaeger"},
			wantErr: "tracing.exporter",
		},
		{
			name:    "sample rate above one",
			tracing: config.TracingConfig{SampleRate: 1.5},
			wantErr: "sample_rate",
		},
		{
			name:    "sample rate negative",
			tracing: config.TracingConfig{SampleRate: -0.1},
			wantErr: "sample_rate",
		},
		{
			name:    "enabled file exporter requires path",
			tracing: config.TracingConfig{Enabled: true, Exporter: "file", SampleRate: 1.0},
			wantErr: "file_path",
		},
		{
			name:    "enabled otlp exporter requires endpoint",
			tracing: config.TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1.0},
			wantErr: "otlp_endpoint",
		},
		{
			name: "enabled otlp exporter with endpoint",
			tracing: config.TracingConfig{
				Enabled:      true,
				Exporter:     "otlp",
				OTLPEndpoint: "localhost:4317",
				SampleRate:   1.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateTracing(tt.tracing)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", "config.yaml")

	err := config.WriteDefaultConfig(configPath)
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "auto_refresh: true")
	assert.Contains(t, string(data), "default_version")
	assert.Contains(t, string(data), "cache:")
}

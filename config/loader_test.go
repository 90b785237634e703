package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.5-flash"}, cfg.Orchestrator.ModelFallbackOrder)
	assert.Equal(t, 3, cfg.Orchestrator.RetryLimit)
	assert.Equal(t, time.Second, cfg.Orchestrator.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.BackoffCap)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoader_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
orchestrator:
  max_concurrency: 8
  model_fallback_order:
    - gemini-2.5-pro
    - gemini-2.5-flash
    - gemini-2.0-flash
  retry_limit: 1
server:
  http_port: 9000
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Orchestrator.MaxConcurrency)
	assert.Len(t, cfg.Orchestrator.ModelFallbackOrder, 3)
	assert.Equal(t, 1, cfg.Orchestrator.RetryLimit)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep defaults.
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.BackoffCap)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Orchestrator.MaxConcurrency)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("PROMPTFLOW_ORCHESTRATOR_MAX_CONCURRENCY", "12")
	t.Setenv("PROMPTFLOW_ORCHESTRATOR_MODEL_FALLBACK_ORDER", "gemini-2.5-pro, gemini-2.5-flash")
	t.Setenv("PROMPTFLOW_ORCHESTRATOR_ATTEMPT_TIMEOUT", "45s")
	t.Setenv("PROMPTFLOW_REDIS_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.5-flash"}, cfg.Orchestrator.ModelFallbackOrder)
	assert.Equal(t, 45*time.Second, cfg.Orchestrator.AttemptTimeout)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoader_CustomValidator(t *testing.T) {
	called := false
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			called = true
			return nil
		}).
		Load()
	require.NoError(t, err)
	assert.True(t, called)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"zero concurrency", func(c *Config) { c.Orchestrator.MaxConcurrency = 0 }, "max_concurrency"},
		{"empty chain", func(c *Config) { c.Orchestrator.ModelFallbackOrder = nil }, "model_fallback_order"},
		{"blank chain entry", func(c *Config) { c.Orchestrator.ModelFallbackOrder = []string{"pro", " "} }, "is blank"},
		{"negative retry limit", func(c *Config) { c.Orchestrator.RetryLimit = -1 }, "retry_limit"},
		{"zero backoff base", func(c *Config) { c.Orchestrator.BackoffBase = 0 }, "backoff_base"},
		{"cap below base", func(c *Config) { c.Orchestrator.BackoffCap = time.Millisecond }, "backoff_cap"},
		{"zero attempt timeout", func(c *Config) { c.Orchestrator.AttemptTimeout = 0 }, "attempt_timeout"},
		{"bad port", func(c *Config) { c.Server.HTTPPort = -1 }, "HTTP port"},
		{"archive without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

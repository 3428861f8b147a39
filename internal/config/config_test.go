package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/gate"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad provider", func(c *Config) { c.Oracle.Provider = "mistral" }, "oracle.provider"},
		{"zero debug attempts", func(c *Config) { c.Execution.MaxDebugAttempts = 0 }, "execution.max_debug_attempts"},
		{"negative timeout", func(c *Config) { c.Execution.TaskTimeout = -time.Second }, "execution.task_timeout"},
		{"zero history cap", func(c *Config) { c.Execution.HistoryCap = 0 }, "execution.history_cap"},
		{"bad risk threshold", func(c *Config) { c.Gate.RiskThreshold = "extreme" }, "gate.risk_threshold"},
		{"bad classifier", func(c *Config) { c.Gate.Classifier = "vibes" }, "gate.classifier"},
		{"bad storage driver", func(c *Config) { c.Storage.Driver = "mongodb" }, "storage.driver"},
		{"empty dsn", func(c *Config) { c.Storage.DSN = "" }, "storage.dsn"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			perr := errors.AsPilotError(err)
			require.NotNil(t, perr)
			assert.Contains(t, perr.What, tc.field)
		})
	}
}

func TestMergeFromFile_PresenceDecidesOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oracle:
  provider: openai
  model: gpt-4o-mini
execution:
  max_debug_attempts: 5
  task_timeout: 90s
gate:
  enabled: true
`), 0o644))

	cfg := Default()
	require.NoError(t, mergeFromFile(cfg, path))

	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
	assert.Equal(t, 5, cfg.Execution.MaxDebugAttempts)
	assert.Equal(t, 90*time.Second, cfg.Execution.TaskTimeout)
	assert.True(t, cfg.Gate.Enabled)

	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Execution.PlannerTimeout)
	assert.Equal(t, 20, cfg.Execution.HistoryCap)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestMergeFromFile_ZeroValueStillOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gate:
  enabled: false
  auto_approve: false
`), 0o644))

	cfg := Default()
	cfg.Gate.Enabled = true
	cfg.Gate.AutoApprove = true
	require.NoError(t, mergeFromFile(cfg, path))

	assert.False(t, cfg.Gate.Enabled)
	assert.False(t, cfg.Gate.AutoApprove)
}

func TestMergeFromFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("oracle: [not, a, map"), 0o644))

	cfg := Default()
	assert.Error(t, mergeFromFile(cfg, path))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PILOT_ORACLE_PROVIDER", "openai")
	t.Setenv("PILOT_MODEL", "gpt-4o")
	t.Setenv("PILOT_MAX_DEBUG_ATTEMPTS", "7")
	t.Setenv("PILOT_TASK_TIMEOUT", "2m")
	t.Setenv("PILOT_GATE_ENABLED", "true")
	t.Setenv("PILOT_RISK_THRESHOLD", "medium")
	t.Setenv("PILOT_STORAGE_DSN", "/tmp/pilot-test.db")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Default()
	applyEnv(cfg)

	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, "gpt-4o", cfg.Oracle.Model)
	assert.Equal(t, 7, cfg.Execution.MaxDebugAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Execution.TaskTimeout)
	assert.True(t, cfg.Gate.Enabled)
	assert.Equal(t, gate.RiskMedium, cfg.RiskThreshold())
	assert.Equal(t, "/tmp/pilot-test.db", cfg.Storage.DSN)
	assert.Equal(t, "sk-test", cfg.Oracle.APIKey, "provider-native key fallback")
}

func TestApplyEnv_ExplicitKeyWins(t *testing.T) {
	t.Setenv("PILOT_API_KEY", "pilot-key")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	cfg := Default()
	applyEnv(cfg)
	assert.Equal(t, "pilot-key", cfg.Oracle.APIKey)
}

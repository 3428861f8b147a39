// Package config holds pilot's layered configuration: built-in defaults,
// user and project YAML files, then PILOT_* environment variables. The
// core packages never read the environment themselves; they take the
// resolved struct.
package config

import (
	"fmt"
	"time"

	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/gate"
	"github.com/randalmurphal/pilot/internal/oracle"
)

const (
	// PilotDir is the project-local configuration directory.
	PilotDir = ".pilot"
	// ConfigFileName is the config file name inside PilotDir.
	ConfigFileName = "config.yaml"
)

// Config is the resolved pilot configuration.
type Config struct {
	Oracle    OracleConfig    `yaml:"oracle"`
	Execution ExecutionConfig `yaml:"execution"`
	Gate      GateConfig      `yaml:"gate"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// OracleConfig selects and authenticates the reasoning service.
type OracleConfig struct {
	Provider string `yaml:"provider"` // "anthropic" or "openai"
	Model    string `yaml:"model"`    // provider default when empty
	APIKey   string `yaml:"api_key"`  // usually from env, not the file
	BaseURL  string `yaml:"base_url"`
}

// ExecutionConfig bounds the execute→verify→debug loop.
type ExecutionConfig struct {
	MaxDebugAttempts int           `yaml:"max_debug_attempts"`
	TaskTimeout      time.Duration `yaml:"task_timeout"`
	PlannerTimeout   time.Duration `yaml:"planner_timeout"`
	HistoryCap       int           `yaml:"history_cap"`
}

// GateConfig controls the optional approval layer.
type GateConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RiskThreshold string `yaml:"risk_threshold"` // low | medium | high
	Classifier    string `yaml:"classifier"`     // heuristic | oracle
	AutoApprove   bool   `yaml:"auto_approve"`   // skip prompts, approve everything
}

// StorageConfig selects the session store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			Provider: oracle.ProviderAnthropic,
		},
		Execution: ExecutionConfig{
			MaxDebugAttempts: 3,
			TaskTimeout:      5 * time.Minute,
			PlannerTimeout:   5 * time.Minute,
			HistoryCap:       20,
		},
		Gate: GateConfig{
			Enabled:       false,
			RiskThreshold: string(gate.RiskHigh),
			Classifier:    "heuristic",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    ".pilot/pilot.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the resolved configuration once, at load time.
func (c *Config) Validate() error {
	switch c.Oracle.Provider {
	case oracle.ProviderAnthropic, oracle.ProviderOpenAI:
	default:
		return errors.ErrConfigInvalid("oracle.provider",
			fmt.Sprintf("unknown provider %q", c.Oracle.Provider))
	}
	if c.Execution.MaxDebugAttempts < 1 {
		return errors.ErrConfigInvalid("execution.max_debug_attempts", "must be at least 1")
	}
	if c.Execution.TaskTimeout <= 0 {
		return errors.ErrConfigInvalid("execution.task_timeout", "must be positive")
	}
	if c.Execution.PlannerTimeout <= 0 {
		return errors.ErrConfigInvalid("execution.planner_timeout", "must be positive")
	}
	if c.Execution.HistoryCap < 1 {
		return errors.ErrConfigInvalid("execution.history_cap", "must be at least 1")
	}
	switch gate.Risk(c.Gate.RiskThreshold) {
	case gate.RiskLow, gate.RiskMedium, gate.RiskHigh:
	default:
		return errors.ErrConfigInvalid("gate.risk_threshold",
			fmt.Sprintf("unknown risk level %q", c.Gate.RiskThreshold))
	}
	switch c.Gate.Classifier {
	case "heuristic", "oracle":
	default:
		return errors.ErrConfigInvalid("gate.classifier",
			fmt.Sprintf("unknown classifier %q", c.Gate.Classifier))
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return errors.ErrConfigInvalid("storage.driver",
			fmt.Sprintf("unknown driver %q", c.Storage.Driver))
	}
	if c.Storage.DSN == "" {
		return errors.ErrConfigMissing("storage.dsn")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.ErrConfigInvalid("log.level",
			fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.ErrConfigInvalid("log.format",
			fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	return nil
}

// OracleClientConfig converts to the oracle package's config struct.
func (c *Config) OracleClientConfig() oracle.Config {
	return oracle.Config{
		Provider: c.Oracle.Provider,
		APIKey:   c.Oracle.APIKey,
		BaseURL:  c.Oracle.BaseURL,
		Model:    c.Oracle.Model,
	}
}

// RiskThreshold returns the gate threshold as a typed risk level.
func (c *Config) RiskThreshold() gate.Risk {
	return gate.Risk(c.Gate.RiskThreshold)
}

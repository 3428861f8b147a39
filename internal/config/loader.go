package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load resolves configuration in layers, later layers overriding earlier:
//
//  1. Built-in defaults
//  2. User config (~/.pilot/config.yaml) - optional
//  3. Project config (.pilot/config.yaml) - optional
//  4. Environment variables (PILOT_*)
//
// User-config errors are logged and skipped; project-config errors are
// fatal. The result is validated once.
func Load() (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, PilotDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(cfg, userPath); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := filepath.Join(PilotDir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(cfg, projectPath); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFromFile overlays one YAML file onto cfg. Presence is decided from
// the raw document so a file can set a field to its zero value.
func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if rawOracle, ok := raw["oracle"].(map[string]any); ok {
		if _, ok := rawOracle["provider"]; ok {
			cfg.Oracle.Provider = fileCfg.Oracle.Provider
		}
		if _, ok := rawOracle["model"]; ok {
			cfg.Oracle.Model = fileCfg.Oracle.Model
		}
		if _, ok := rawOracle["api_key"]; ok {
			cfg.Oracle.APIKey = fileCfg.Oracle.APIKey
		}
		if _, ok := rawOracle["base_url"]; ok {
			cfg.Oracle.BaseURL = fileCfg.Oracle.BaseURL
		}
	}
	if rawExec, ok := raw["execution"].(map[string]any); ok {
		if _, ok := rawExec["max_debug_attempts"]; ok {
			cfg.Execution.MaxDebugAttempts = fileCfg.Execution.MaxDebugAttempts
		}
		if _, ok := rawExec["task_timeout"]; ok {
			cfg.Execution.TaskTimeout = fileCfg.Execution.TaskTimeout
		}
		if _, ok := rawExec["planner_timeout"]; ok {
			cfg.Execution.PlannerTimeout = fileCfg.Execution.PlannerTimeout
		}
		if _, ok := rawExec["history_cap"]; ok {
			cfg.Execution.HistoryCap = fileCfg.Execution.HistoryCap
		}
	}
	if rawGate, ok := raw["gate"].(map[string]any); ok {
		if _, ok := rawGate["enabled"]; ok {
			cfg.Gate.Enabled = fileCfg.Gate.Enabled
		}
		if _, ok := rawGate["risk_threshold"]; ok {
			cfg.Gate.RiskThreshold = fileCfg.Gate.RiskThreshold
		}
		if _, ok := rawGate["classifier"]; ok {
			cfg.Gate.Classifier = fileCfg.Gate.Classifier
		}
		if _, ok := rawGate["auto_approve"]; ok {
			cfg.Gate.AutoApprove = fileCfg.Gate.AutoApprove
		}
	}
	if rawStorage, ok := raw["storage"].(map[string]any); ok {
		if _, ok := rawStorage["driver"]; ok {
			cfg.Storage.Driver = fileCfg.Storage.Driver
		}
		if _, ok := rawStorage["dsn"]; ok {
			cfg.Storage.DSN = fileCfg.Storage.DSN
		}
	}
	if rawLog, ok := raw["log"].(map[string]any); ok {
		if _, ok := rawLog["level"]; ok {
			cfg.Log.Level = fileCfg.Log.Level
		}
		if _, ok := rawLog["format"]; ok {
			cfg.Log.Format = fileCfg.Log.Format
		}
	}
	return nil
}

// applyEnv overlays PILOT_* environment variables. API keys additionally
// fall back to the provider-native variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("PILOT_ORACLE_PROVIDER", &cfg.Oracle.Provider)
	setString("PILOT_MODEL", &cfg.Oracle.Model)
	setString("PILOT_API_KEY", &cfg.Oracle.APIKey)
	setString("PILOT_BASE_URL", &cfg.Oracle.BaseURL)
	setString("PILOT_RISK_THRESHOLD", &cfg.Gate.RiskThreshold)
	setString("PILOT_GATE_CLASSIFIER", &cfg.Gate.Classifier)
	setString("PILOT_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("PILOT_STORAGE_DSN", &cfg.Storage.DSN)
	setString("PILOT_LOG_LEVEL", &cfg.Log.Level)
	setString("PILOT_LOG_FORMAT", &cfg.Log.Format)

	if v := os.Getenv("PILOT_MAX_DEBUG_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Execution.MaxDebugAttempts = n
		}
	}
	if v := os.Getenv("PILOT_TASK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Execution.TaskTimeout = d
		}
	}
	if v := os.Getenv("PILOT_PLANNER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Execution.PlannerTimeout = d
		}
	}
	if v := os.Getenv("PILOT_HISTORY_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Execution.HistoryCap = n
		}
	}
	if v := os.Getenv("PILOT_GATE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gate.Enabled = b
		}
	}
	if v := os.Getenv("PILOT_AUTO_APPROVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gate.AutoApprove = b
		}
	}

	// Provider-native key variables as a fallback.
	if cfg.Oracle.APIKey == "" {
		switch cfg.Oracle.Provider {
		case "openai":
			cfg.Oracle.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.Oracle.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/randalmurphal/pilot/internal/config"
	"github.com/randalmurphal/pilot/internal/oracle"
	"github.com/randalmurphal/pilot/internal/storage"
)

// loadConfig resolves the layered config and applies CLI-level viper
// overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("model"); v != "" {
		cfg.Oracle.Model = v
	}
	if v := viper.GetString("provider"); v != "" {
		cfg.Oracle.Provider = v
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger from config. Logs go to stderr so
// stdout stays clean for command output.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newOracleClient builds the oracle client from config.
func newOracleClient(cfg *config.Config) (oracle.Client, error) {
	return oracle.New(cfg.OracleClientConfig())
}

// openStore opens the configured session store.
func openStore(cfg *config.Config) (*storage.Store, error) {
	return storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
}

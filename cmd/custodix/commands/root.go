package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodix/custodix/internal/config"
	"github.com/custodix/custodix/internal/engine"
)

var cfgFile string

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "custodix",
		Short: "Evidence integrity and dual-source reconciliation engine",
		Long:  "Custodix verifies evidence fingerprints, reconciles the secondary store against the ledger, aggregates custody audit trails, and manages tamper alerts.",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "custodix.yaml", "config file path")

	root.AddCommand(
		newVerifyCmd(),
		newTrailCmd(),
		newSyncCmd(),
		newAlertsCmd(),
		newResolveCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the config file; a missing file falls back to defaults so
// the CLI works out of the box.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Defaults(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// buildEngine assembles the engine from the active config. Callers own
// Close.
func buildEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(cfg, newLogger(cfg.LogLevel), nil)
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}

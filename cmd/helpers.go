package cmd

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/promptlab/internal/config"
	"github.com/ziadkadry99/promptlab/internal/db"
	"github.com/ziadkadry99/promptlab/internal/llm"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `promptlab init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newService builds the model service over the built-in catalog, with
// the config file as the credential source.
func newService(cfg *config.Config) *llm.Service {
	return llm.NewService(llm.DefaultRegistry(), cfg)
}

// openHistory opens the run history database, or returns nil when
// history is disabled by an empty history_db.
func openHistory(cfg *config.Config) (*db.DB, error) {
	if cfg.HistoryDB == "" {
		return nil, nil
	}
	d, err := db.Open(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("opening history database %s: %w", cfg.HistoryDB, err)
	}
	return d, nil
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

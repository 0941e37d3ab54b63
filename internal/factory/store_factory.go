package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mail-triage/internal/adapters/store"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates the message store based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore opens the configured store, creating the directory of a
// SQLite file when needed
func (f *StoreFactory) CreateStore() (core.MessageStore, error) {
	sc := f.cfg.GetStore()

	switch sc.Driver {
	case "sqlite3", "sqlite":
		if sc.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(sc.DSN), 0755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
	case "mysql":
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", sc.Driver)
	}

	s, err := store.Open(sc.Driver, sc.DSN, f.logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

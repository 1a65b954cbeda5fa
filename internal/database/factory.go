package database

import (
	"fmt"
	"os"
	"path/filepath"

	"cfgpush/internal/cfgpush"
	"cfgpush/internal/config"
)

// FileName is the ledger file created under data_dir.
const FileName = "cfgpush.db"

// NewDatabaseFromConfig opens the ledger described by cfg and migrates it.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (cfgpush.Database, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, FileName)
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return db, nil
}

// Package store opens the account store selected by configuration.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/excuse-me/internal/config"
	"github.com/sakif/excuse-me/internal/repository"
	"github.com/sakif/excuse-me/internal/repository/postgres"
	"github.com/sakif/excuse-me/internal/repository/sqlite"
)

// Open connects to the configured backend and ensures its schema. For
// SQLite the parent directory of the database file is created if missing.
func Open(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		if cfg.Path != ":memory:" {
			dir := filepath.Dir(cfg.Path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return db, nil

	case "postgres":
		db, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

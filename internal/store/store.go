// Package store persists download records. The ledger is the only caller.
package store

import (
	"context"
	"fmt"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/infra/config"
)

// Backend is a table of download records keyed by content id.
type Backend interface {
	// Upsert inserts or overwrites every record in one transaction.
	Upsert(ctx context.Context, recs ...domain.DownloadRecord) error
	Get(ctx context.Context, id string) (domain.DownloadRecord, bool, error)
	// Delete removes the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids ...string) error
	// All returns every record ordered by id.
	All(ctx context.Context) ([]domain.DownloadRecord, error)
	Close() error
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

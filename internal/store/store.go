package store

import (
	"fmt"

	"github.com/bloodcell-ai-server/internal/domain"
)

// Open creates the configured store backend and wraps it with the report
// cache when a cache size is set.
func Open(cfg domain.StorageConfig) (domain.Store, error) {
	var (
		backend domain.Store
		err     error
	)

	switch cfg.Driver {
	case "sqlite", "":
		backend, err = NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		backend, err = NewPostgresStoreFromURL(cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.ReportCacheSize <= 0 {
		return backend, nil
	}

	cached, err := NewCachedStore(backend, cfg.ReportCacheSize)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return cached, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/FranksOps/serpcmp/internal/config"
	"github.com/FranksOps/serpcmp/internal/storage"
	"github.com/FranksOps/serpcmp/internal/storage/csvbackend"
	"github.com/FranksOps/serpcmp/internal/storage/jsonbackend"
	"github.com/FranksOps/serpcmp/internal/storage/postgres"
	"github.com/FranksOps/serpcmp/internal/storage/sqlite"
)

// openBackend returns nil, nil when snapshots are not exported.
func openBackend(cfg config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendSQLite:
		b, err = sqlite.New(cfg.DSN)
	case config.BackendPostgres:
		b, err = postgres.New(context.Background(), cfg.DSN)
	case config.BackendJSON:
		b, err = jsonbackend.New(cfg.DSN)
	case config.BackendCSV:
		b, err = csvbackend.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}

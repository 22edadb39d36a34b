package main

import (
	"context"
	"fmt"

	"equity-factor-lab/internal/config"
	"equity-factor-lab/internal/storage"
	"equity-factor-lab/internal/storage/memory"
	"equity-factor-lab/internal/storage/migrations"
	pgstore "equity-factor-lab/internal/storage/postgres"
	"equity-factor-lab/internal/storage/sqlite"
)

// openRunStore opens the run store selected by cfg. The returned func
// releases the underlying connection.
func openRunStore(ctx context.Context, cfg config.StorageConfig) (storage.RunStore, func(), error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewRunStore(), func() {}, nil

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewRunStore(db), func() { db.Close() }, nil

	case config.StoragePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pgstore.NewRunStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

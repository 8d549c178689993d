package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/commons-lab/hansard-classify/internal/db"
	"github.com/commons-lab/hansard-classify/internal/store"
)

// initStore opens the configured store driver.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "hansard.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

package resultstore

import (
	"context"
	"fmt"

	"github.com/dgallion1/qcsr/internal/config"
)

// Open returns the store selected by cfg.ResultStore.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.ResultStore {
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case config.StorePostgres:
		pool, err := NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case config.StoreRemote:
		return NewRemoteStore(cfg.ResultsURL, cfg.ResultsAPIKey), nil
	case config.StoreNone, "":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown result store %q", cfg.ResultStore)
}

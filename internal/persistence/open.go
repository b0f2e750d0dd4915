// Package persistence selects the store driver named by configuration.
package persistence

import (
	"context"
	"fmt"

	"example.com/performance/internal/config"
	"example.com/performance/internal/domain"
	"example.com/performance/internal/persistence/memory"
	"example.com/performance/internal/persistence/postgres"
	"example.com/performance/internal/persistence/sqlite"
)

// Open returns the store for cfg.StoreDriver. Postgres schemas are migrated
// before the store is returned.
func Open(ctx context.Context, cfg config.Config) (domain.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return memory.NewStore(), nil
	}
}

// EventDriven reports whether changes reach the consumer through the outbox.
// Other drivers refresh in process after each change.
func EventDriven(store domain.Store) bool {
	_, ok := store.(*postgres.Store)
	return ok
}

package main

import (
	"context"
	"fmt"
	"log"

	"liquidify/internal/config"
	"liquidify/internal/storage"
	chstore "liquidify/internal/storage/clickhouse"
	"liquidify/internal/storage/memory"
	"liquidify/internal/storage/migrations"
	pgstore "liquidify/internal/storage/postgres"
)

// allStores holds the registry, history and analytics stores.
type allStores struct {
	registry storage.TokenRegistry
	history  storage.CycleHistoryStore
	metrics  storage.CycleMetricsStore // nil when analytics is disabled
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			registry: memory.NewTokenRegistry(),
			history:  memory.NewCycleHistoryStore(),
			metrics:  memory.NewCycleMetricsStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Printf("PostgreSQL migrations applied: %d new", len(applied))
	}

	stores := &allStores{
		registry: pgstore.NewTokenRegistry(pool),
		history:  pgstore.NewCycleHistoryStore(pool),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse (optional analytics)
	if cfg.ClickHouse.DSN == "" {
		logger.Println("ClickHouse not configured, cycle analytics disabled")
		return stores, cleanup, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse: %w", err)
	}
	stores.metrics = chstore.NewCycleMetricsStore(chConn)

	cleanup = func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

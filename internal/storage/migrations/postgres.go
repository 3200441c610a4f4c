// Package migrations applies the embedded schema to the configured databases.
package migrations

import (
	"context"
	"fmt"
	"time"

	"liquidify/internal/storage/postgres"
	"liquidify/internal/storage/schema"
)

// RunPostgresMigrations applies the embedded SQL files in lexical order.
// Each file runs in its own transaction and is recorded in schema_migrations,
// so files already applied are skipped. Returns the names applied by this call.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	files, err := schema.Postgres()
	if err != nil {
		return nil, err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, file := range files {
		if applied[file.Name] {
			continue
		}
		if err := applyPostgres(ctx, pool, file); err != nil {
			return names, fmt.Errorf("apply migration %s: %w", file.Name, err)
		}
		names = append(names, file.Name)
	}
	return names, nil
}

func appliedMigrations(ctx context.Context, pool *postgres.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migration name: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func applyPostgres(ctx context.Context, pool *postgres.Pool, file schema.File) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, file.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)`,
		file.Name, time.Now().UnixMilli(),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

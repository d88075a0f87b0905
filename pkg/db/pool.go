// Package db stores the transform audit log in Postgres via pgx.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// NewPool creates a new pgx connection pool from the given database URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}

	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established", logPrefix))
	return pool, nil
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name    TEXT PRIMARY KEY,
	applied TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// RunMigrations applies pending migrations in order, each in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("%s - failed to create schema_migrations: %w", logPrefix, err)
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return err
	}
	pending := PendingMigrations(migrations, applied)
	slog.Info(fmt.Sprintf("%s - Running %d of %d migrations", logPrefix, len(pending), len(migrations)))

	for _, m := range pending {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s - migration %s failed: %w", logPrefix, m.Name, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied %s", logPrefix, m.Name))
	}

	slog.Info(fmt.Sprintf("%s - Migrations complete", logPrefix))
	return nil
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to list applied migrations: %w", logPrefix, err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%s - scan migration name failed: %w", logPrefix, err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// MigrationStatus prints applied and pending migrations.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error {
	const statusLogPrefix = "db:MigrationStatus"

	migrations, err := LoadMigrations(migrationPath)
	if err != nil {
		return fmt.Errorf("%s - load migration list: %w", statusLogPrefix, err)
	}

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'schema_migrations')`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s - failed to check schema: %w", statusLogPrefix, err)
	}

	applied := map[string]bool{}
	if exists {
		if applied, err = appliedMigrations(ctx, pool); err != nil {
			return err
		}
	}

	for _, m := range migrations {
		state := "pending"
		if applied[m.Name] {
			state = "applied"
		}
		fmt.Printf("%-40s %s\n", m.Name, state)
	}
	fmt.Printf("Migration status: %d pending of %d in %s\n", len(PendingMigrations(migrations, applied)), len(migrations), migrationPath)
	return nil
}

// MigrationDown rolls back the last migration. Migrations are forward-only;
// this is a no-op with a message.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, _ string) error {
	fmt.Println("Migration down: not supported (migrations are forward-only). Use 'cipherd clear' to drop audit rows or a database backup to roll back.")
	return nil
}

// Package main is the entrypoint for cipherd, the textcipher transform server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/textcipher/internal/config"
	"github.com/morezero/textcipher/internal/server"
	"github.com/morezero/textcipher/pkg/db"
)

const usage = `Usage: cipherd [command]
       cipherd serve                 Start the transform server (COMMS, HTTP API, audit).
       cipherd migrate up            Run database migrations.
       cipherd migrate down          Roll back one migration (migrations are forward-only; reports only).
       cipherd migrate status        Show migration status.
       cipherd ensure-db [name]      Create database if missing (default name: cipher_test). Uses DATABASE_URL host/user.
       cipherd clear                 Truncate the transform audit log; schema is preserved.
       cipherd recent [algorithm]    Print the most recent audit rows as JSON lines.

Commands:
  serve             (default) Start cipherd.
  migrate up        Run database migrations only.
  migrate down      Roll back last migration (not supported; prints a notice).
  migrate status    Show current migration status.
  ensure-db [name]  Create database (e.g. cipher_test) on same host as DATABASE_URL; then run tests with that URL.
  clear             Truncate audit data; schema preserved.
  recent [alg]      List recent transforms, optionally for one algorithm.

Environment: DATABASE_URL, MIGRATION_PATH, AUDIT_ENABLED, COMMS_URL, COMMS_EMBEDDED,
HTTP_ADDR or PORT (default 3000), CIPHER_DEFAULT_KEY, CIPHER_DEFAULT_SHIFT.
`

const recentLimit = 50

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("cipherd migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("cipherd migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("cipherd migrate status: %v", err)
			}
		case "down":
			if err := runMigrateDown(); err != nil {
				log.Fatalf("cipherd migrate down: %v", err)
			}
		default:
			log.Fatalf("cipherd migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("cipherd clear: %v", err)
		}
		return
	case "recent":
		algorithm := ""
		if len(args) > 1 {
			algorithm = args[1]
		}
		if err := runRecent(algorithm); err != nil {
			log.Fatalf("cipherd recent: %v", err)
		}
		return
	case "ensure-db":
		dbName := "cipher_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("cipherd ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("cipherd: %v", err)
	}
}

// withPool loads DB config, opens a pool and runs fn with it.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

func runMigrateUp() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		migrations, err := db.LoadMigrations(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

func runMigrateStatus() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	})
}

func runMigrateDown() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		return db.MigrationDown(ctx, pool, cfg.MigrationPath)
	})
}

func runClear() error {
	return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		if err := db.ClearAudit(ctx, pool); err != nil {
			return fmt.Errorf("clear audit: %w", err)
		}
		return nil
	})
}

func runRecent(algorithm string) error {
	return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		records, err := db.NewRepository(pool).ListRecentTransforms(ctx, db.ListTransformsParams{
			Algorithm: algorithm,
			Limit:     recentLimit,
		})
		if err != nil {
			return fmt.Errorf("list transforms: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		for i := range records {
			if err := enc.Encode(&records[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	targetURL, err := db.WithDatabaseName(cfg.DatabaseURL, dbName)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if err := db.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

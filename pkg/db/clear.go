package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearAudit truncates the transform audit log. Schema is preserved.
func ClearAudit(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing transform audit", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE transform_audit`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Transform audit cleared", clearLogPrefix))
	return nil
}

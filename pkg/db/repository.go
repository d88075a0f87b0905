package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

const maxListLimit = 500

// Repository provides database access for the transform audit log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTransformParams holds parameters for InsertTransformRecord.
type InsertTransformParams struct {
	EventID       string
	RequestID     string
	Algorithm     string
	Direction     string
	Path          string
	Fallback      bool
	Success       bool
	ErrorKind     string
	KeyDisclosure string
	InputLength   int
	DurationMs    int64
}

// InsertTransformRecord appends a row to the audit log. A repeated EventID is
// ignored and returns nil.
func (r *Repository) InsertTransformRecord(ctx context.Context, params InsertTransformParams) (*TransformRecord, error) {
	slog.Debug(fmt.Sprintf("%s - InsertTransformRecord event=%s algorithm=%s", repoLogPrefix, params.EventID, params.Algorithm))

	row := r.pool.QueryRow(ctx,
		`INSERT INTO transform_audit
		   (event_id, request_id, algorithm, direction, path, fallback, success,
		    error_kind, key_disclosure, input_length, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (event_id) DO NOTHING
		 RETURNING `+recordColumns,
		params.EventID, nullIfEmpty(params.RequestID), params.Algorithm, params.Direction, params.Path,
		params.Fallback, params.Success, nullIfEmpty(params.ErrorKind), nullIfEmpty(params.KeyDisclosure),
		params.InputLength, params.DurationMs)

	return scanRecord(row)
}

// ListTransformsParams holds parameters for ListRecentTransforms.
type ListTransformsParams struct {
	// Algorithm filters by algorithm when non-empty.
	Algorithm string
	Limit     int
}

// ListRecentTransforms returns the newest audit rows first.
func (r *Repository) ListRecentTransforms(ctx context.Context, params ListTransformsParams) ([]TransformRecord, error) {
	limit := params.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+`
		 FROM transform_audit
		 WHERE ($1 = '' OR algorithm = $1)
		 ORDER BY created DESC
		 LIMIT $2`, params.Algorithm, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - ListRecentTransforms query failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []TransformRecord
	for rows.Next() {
		rec, err := scanRecordFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - ListRecentTransforms rows failed: %w", repoLogPrefix, err)
	}
	return out, nil
}

// TransformStats aggregates the audit log per algorithm and direction.
func (r *Repository) TransformStats(ctx context.Context) ([]AlgorithmStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT algorithm, direction,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE success),
		        COUNT(*) FILTER (WHERE NOT success),
		        COUNT(*) FILTER (WHERE fallback),
		        COALESCE(AVG(duration_ms), 0)::float8
		 FROM transform_audit
		 GROUP BY algorithm, direction
		 ORDER BY algorithm, direction`)
	if err != nil {
		return nil, fmt.Errorf("%s - TransformStats query failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []AlgorithmStats
	for rows.Next() {
		var s AlgorithmStats
		if err := rows.Scan(&s.Algorithm, &s.Direction, &s.Total, &s.Succeeded, &s.Failed, &s.Fallbacks, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("%s - scan stats failed: %w", repoLogPrefix, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - TransformStats rows failed: %w", repoLogPrefix, err)
	}
	return out, nil
}

const recordColumns = `id, event_id, request_id, algorithm, direction, path, fallback, success,
	error_kind, key_disclosure, input_length, duration_ms, created`

func scanRecord(row pgx.Row) (*TransformRecord, error) {
	var rec TransformRecord
	err := row.Scan(
		&rec.ID, &rec.EventID, &rec.RequestID, &rec.Algorithm, &rec.Direction, &rec.Path,
		&rec.Fallback, &rec.Success, &rec.ErrorKind, &rec.KeyDisclosure,
		&rec.InputLength, &rec.DurationMs, &rec.Created,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan transform record failed: %w", repoLogPrefix, err)
	}
	return &rec, nil
}

func scanRecordFromRows(rows pgx.Rows) (*TransformRecord, error) {
	var rec TransformRecord
	err := rows.Scan(
		&rec.ID, &rec.EventID, &rec.RequestID, &rec.Algorithm, &rec.Direction, &rec.Path,
		&rec.Fallback, &rec.Success, &rec.ErrorKind, &rec.KeyDisclosure,
		&rec.InputLength, &rec.DurationMs, &rec.Created,
	)
	if err != nil {
		return nil, fmt.Errorf("%s - scan transform record from rows failed: %w", repoLogPrefix, err)
	}
	return &rec, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

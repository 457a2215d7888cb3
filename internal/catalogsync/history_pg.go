package catalogsync

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guanabara/catalog-sync/internal/platform/db"
)

//go:embed migrations/0001_catalog_sync_runs.sql
var historySchema string

// PGHistory stores the run ledger in Postgres, pruned to a fixed number of
// most recent runs.
type PGHistory struct {
	pool  *pgxpool.Pool
	limit int
}

// NewPGHistory builds the Postgres ledger.
func NewPGHistory(pool *pgxpool.Pool, limit int) *PGHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &PGHistory{pool: pool, limit: limit}
}

// EnsureSchema creates the ledger table when missing.
func (h *PGHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("catalogsync: ensure history schema: %w", err)
	}
	return nil
}

const insertRunSQL = `INSERT INTO catalog_sync_runs (
	run_id, trigger, status, started_at, finished_at, duration_ms,
	products, prices, sections, brands, genres, group_count,
	preserved_images, products_truncated, warnings, error
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

const pruneRunsSQL = `DELETE FROM catalog_sync_runs
WHERE run_id NOT IN (
	SELECT run_id FROM catalog_sync_runs ORDER BY started_at DESC LIMIT $1
)`

const listRunsSQL = `SELECT run_id::text, trigger, status, started_at, finished_at, duration_ms,
	products, prices, sections, brands, genres, group_count,
	preserved_images, products_truncated, warnings, error
FROM catalog_sync_runs
ORDER BY started_at DESC
LIMIT $1`

// Record inserts res and prunes older runs in one transaction. Recording the
// same run twice is a no-op.
func (h *PGHistory) Record(ctx context.Context, res Result) error {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	err := db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertRunSQL,
			res.RunID, res.Trigger, res.Status, res.StartedAt, res.FinishedAt, res.DurationMillis,
			res.Totals.Products, res.Totals.Prices, res.Totals.Sections, res.Totals.Brands, res.Totals.Genres, res.Totals.Groups,
			res.PreservedImages, res.ProductsTruncated, warnings, res.Error,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, pruneRunsSQL, h.limit)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("catalogsync: record run %s: %w", res.RunID, err)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (h *PGHistory) List(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 || limit > h.limit {
		limit = h.limit
	}
	rows, err := h.pool.Query(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("catalogsync: list runs: %w", err)
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.RunID, &r.Trigger, &r.Status, &r.StartedAt, &r.FinishedAt, &r.DurationMillis,
			&r.Totals.Products, &r.Totals.Prices, &r.Totals.Sections, &r.Totals.Brands, &r.Totals.Genres, &r.Totals.Groups,
			&r.PreservedImages, &r.ProductsTruncated, &r.Warnings, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("catalogsync: scan run: %w", err)
		}
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalogsync: list runs: %w", err)
	}
	return out, nil
}

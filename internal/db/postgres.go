// Package db provides database connection helpers and schema migrations.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of *pgxpool.Pool the stores use, so they can run on
// a pool, a single connection or a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPostgresPool creates and verifies a pgxpool connection pool. maxConns <= 0
// keeps the pgx default.
func NewPostgresPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// Table quotes a configurable table name for interpolation into SQL.
func Table(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// ErrMissingTable means a configured table does not exist. Migrations create
// only the default table names; custom RECORDS_TABLE or JOBS_TABLE values must
// name tables created with the same schema.
var ErrMissingTable = errors.New("table does not exist")

// EnsureTables checks that every named table exists.
func EnsureTables(ctx context.Context, q Querier, tables ...string) error {
	var missing []string
	for _, t := range tables {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT to_regclass($1::text) IS NOT NULL`, Table(t)).Scan(&exists); err != nil {
			return fmt.Errorf("check table %q: %w", t, err)
		}
		if !exists {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s (run migrate up, or create custom tables with the migrated schema)", ErrMissingTable, strings.Join(missing, ", "))
	}
	return nil
}

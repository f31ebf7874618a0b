package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mochatech1725/scholarship-scraper2/internal/db"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

const sourceColumns = `name, kind, enabled, adapter, exclude_terms, payload, created_at, updated_at`

// PostgresStore reads the scholarship_sources table.
type PostgresStore struct {
	q db.Querier
}

// NewPostgresStore returns a store over q.
func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{q: q}
}

// ScanEnabled returns all rows with enabled = true, payload undecoded.
func (s *PostgresStore) ScanEnabled(ctx context.Context) ([]model.SourceConfig, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+sourceColumns+`
		 FROM scholarship_sources
		 WHERE enabled = true
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query scholarship_sources: %w", err)
	}
	defer rows.Close()

	var sources []model.SourceConfig
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		sources = append(sources, src)
	}

	return sources, rows.Err()
}

// Get returns one row by name, payload undecoded.
func (s *PostgresStore) Get(ctx context.Context, name string) (model.SourceConfig, error) {
	src, err := scanSource(s.q.QueryRow(ctx,
		`SELECT `+sourceColumns+`
		 FROM scholarship_sources
		 WHERE name = $1`,
		name,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SourceConfig{}, ErrSourceNotFound
	}
	if err != nil {
		return model.SourceConfig{}, fmt.Errorf("get source %q: %w", name, err)
	}
	return src, nil
}

func scanSource(row pgx.Row) (model.SourceConfig, error) {
	var (
		src     model.SourceConfig
		kind    string
		payload []byte
	)
	if err := row.Scan(
		&src.Name, &kind, &src.Enabled, &src.Adapter, &src.ExcludeTerms,
		&payload, &src.CreatedAt, &src.UpdatedAt,
	); err != nil {
		return model.SourceConfig{}, err
	}
	src.Kind = model.SourceKind(kind)
	src.Payload = payload
	return src, nil
}

package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/db"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// PostgresStore persists scholarships keyed by (id, deadline).
type PostgresStore struct {
	q     db.Querier
	table string
}

// NewPostgresStore returns a store writing to table.
func NewPostgresStore(q db.Querier, table string) *PostgresStore {
	return &PostgresStore{q: q, table: db.Table(table)}
}

// Exists reports whether (id, deadline) is already stored.
func (s *PostgresStore) Exists(ctx context.Context, id, deadline string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1 AND deadline = $2)`, s.table),
		id, deadline,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", id, err)
	}
	return exists, nil
}

// Insert writes rec unless (id, deadline) already exists. It reports whether
// a row was written.
func (s *PostgresStore) Insert(ctx context.Context, rec model.ScholarshipRecord) (bool, error) {
	tag, err := s.q.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (
		   id, deadline, name, organization, description, eligibility,
		   academic_level, geographic, target_type, ethnicity, gender,
		   min_award, max_award, renewable, country, url, apply_url, active,
		   essay_required, recommendations_required, source, job_id,
		   created_at, updated_at
		 ) VALUES (
		   $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		   $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		 )
		 ON CONFLICT (id, deadline) DO NOTHING`, s.table),
		rec.ID, rec.Deadline, rec.Name, rec.Organization, rec.Description, rec.Eligibility,
		rec.AcademicLevel, rec.Geographic, rec.TargetType, rec.Ethnicity, rec.Gender,
		rec.MinAward, rec.MaxAward, rec.Renewable, rec.Country, rec.URL, rec.ApplyURL, rec.Active,
		rec.EssayRequired, rec.RecommendationsRequired, rec.Source, rec.JobID,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", rec.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Touch bumps updated_at on an existing row without changing its content. It
// reports whether the row was found.
func (s *PostgresStore) Touch(ctx context.Context, id, deadline string, at time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET updated_at = $3 WHERE id = $1 AND deadline = $2`, s.table),
		id, deadline, at,
	)
	if err != nil {
		return false, fmt.Errorf("touch %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mochatech1725/scholarship-scraper2/internal/db"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// PostgresStore keeps job records in a single table keyed by job_id.
type PostgresStore struct {
	q     db.Querier
	table string
}

// NewPostgresStore returns a store writing to table.
func NewPostgresStore(q db.Querier, table string) *PostgresStore {
	return &PostgresStore{q: q, table: db.Table(table)}
}

// Upsert inserts or updates rec. A row already in a terminal status only
// accepts a re-write of that same status.
func (s *PostgresStore) Upsert(ctx context.Context, rec *model.JobRecord) error {
	errs, err := json.Marshal(nonNil(rec.Errors))
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	_, err = s.q.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %[1]s AS j (
		   job_id, start_time, end_time, status, source,
		   found, processed, inserted, updated, errors, environment
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11)
		 ON CONFLICT (job_id) DO UPDATE SET
		   end_time  = EXCLUDED.end_time,
		   status    = EXCLUDED.status,
		   found     = EXCLUDED.found,
		   processed = EXCLUDED.processed,
		   inserted  = EXCLUDED.inserted,
		   updated   = EXCLUDED.updated,
		   errors    = EXCLUDED.errors
		 WHERE j.status NOT IN ('completed', 'failed') OR j.status = EXCLUDED.status`, s.table),
		rec.JobID, rec.StartTime, rec.EndTime, string(rec.Status), rec.Source,
		rec.Found, rec.Processed, rec.Inserted, rec.Updated, string(errs), rec.Environment,
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", rec.JobID, err)
	}
	return nil
}

const jobColumns = `job_id, start_time, end_time, status, source,
		found, processed, inserted, updated, errors, environment`

// Get returns the job with jobID or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	row := s.q.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE job_id = $1`, jobColumns, s.table), jobID)
	rec, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return rec, nil
}

// List returns up to limit jobs, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.JobRecord, error) {
	rows, err := s.q.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY start_time DESC LIMIT $1`, jobColumns, s.table), limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.JobRecord, 0)
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs scan: %w", err)
		}
		jobs = append(jobs, *rec)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*model.JobRecord, error) {
	var (
		rec    model.JobRecord
		status string
		errs   []byte
	)
	if err := row.Scan(
		&rec.JobID, &rec.StartTime, &rec.EndTime, &status, &rec.Source,
		&rec.Found, &rec.Processed, &rec.Inserted, &rec.Updated, &errs, &rec.Environment,
	); err != nil {
		return nil, err
	}
	rec.Status = model.JobStatus(status)
	if err := json.Unmarshal(errs, &rec.Errors); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	rec.Errors = nonNil(rec.Errors)
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

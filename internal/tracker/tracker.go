package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// ─── Dependencies ────────────────────────────────────────────────────────────

// Store persists job records. Upsert must not move a terminal record to a
// different status.
type Store interface {
	Upsert(ctx context.Context, rec *model.JobRecord) error
	Get(ctx context.Context, jobID string) (*model.JobRecord, error)
	List(ctx context.Context, limit int) ([]model.JobRecord, error)
}

// Publisher broadcasts status changes. Failures are logged, never returned.
type Publisher interface {
	PublishStatus(ctx context.Context, ev Event) error
}

// Event describes one status change.
type Event struct {
	Type      string          `json:"type"`
	JobID     string          `json:"jobId"`
	Source    string          `json:"source"`
	From      model.JobStatus `json:"from,omitempty"`
	To        model.JobStatus `json:"to"`
	Found     int             `json:"found"`
	Processed int             `json:"processed"`
	Inserted  int             `json:"inserted"`
	Updated   int             `json:"updated"`
	Errors    int             `json:"errors"`
}

// EventJobStatus is the event type and channel name for status changes.
const EventJobStatus = "EVENT_JOB_STATUS"

// Metadata carries the counters and error list written with a transition.
// Values are absolute, not increments.
type Metadata struct {
	Found     int
	Processed int
	Inserted  int
	Updated   int
	Errors    []string
}

// ─── Tracker ─────────────────────────────────────────────────────────────────

// Tracker is the single writer of job records.
type Tracker struct {
	store       Store
	pub         Publisher
	environment string
	log         logger.Logger
	now         func() time.Time
}

// New returns a Tracker. pub may be nil.
func New(store Store, pub Publisher, environment string, log logger.Logger) *Tracker {
	return &Tracker{
		store:       store,
		pub:         pub,
		environment: environment,
		log:         log.With(logger.Component("tracker")),
		now:         time.Now,
	}
}

// Create writes a pending job record.
func (t *Tracker) Create(ctx context.Context, jobID, source string) (*model.JobRecord, error) {
	rec := &model.JobRecord{
		JobID:       jobID,
		StartTime:   t.now().UTC(),
		Status:      model.JobPending,
		Source:      source,
		Errors:      []string{},
		Environment: t.environment,
	}
	if err := t.store.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("create job %s: %w", jobID, err)
	}
	t.publish(ctx, "", rec)
	return rec, nil
}

// Transition moves a job to status and records md. Returns ErrNotFound for an
// unknown job and *TransitionError when the state machine rejects the move.
func (t *Tracker) Transition(ctx context.Context, jobID string, status model.JobStatus, md Metadata) (*model.JobRecord, error) {
	rec, err := t.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	from := rec.Status
	if !IsTransitionAllowed(from, status) {
		return nil, &TransitionError{JobID: jobID, From: from, To: status}
	}

	rec.Status = status
	rec.Found, rec.Processed, rec.Inserted, rec.Updated = md.Found, md.Processed, md.Inserted, md.Updated
	rec.Errors = append([]string{}, md.Errors...)
	if status.Terminal() && rec.EndTime == nil {
		end := t.now().UTC()
		rec.EndTime = &end
	}

	if err := t.store.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("transition job %s to %s: %w", jobID, status, err)
	}
	if from != status {
		t.publish(ctx, from, rec)
	}
	return rec, nil
}

// Get returns one job record.
func (t *Tracker) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	return t.store.Get(ctx, jobID)
}

// List returns the most recent job records, newest first.
func (t *Tracker) List(ctx context.Context, limit int) ([]model.JobRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return t.store.List(ctx, limit)
}

func (t *Tracker) publish(ctx context.Context, from model.JobStatus, rec *model.JobRecord) {
	if t.pub == nil {
		return
	}
	ev := Event{
		Type:      EventJobStatus,
		JobID:     rec.JobID,
		Source:    rec.Source,
		From:      from,
		To:        rec.Status,
		Found:     rec.Found,
		Processed: rec.Processed,
		Inserted:  rec.Inserted,
		Updated:   rec.Updated,
		Errors:    len(rec.Errors),
	}
	if err := t.pub.PublishStatus(ctx, ev); err != nil {
		t.log.Warn("Publish job status failed", logger.String("job_id", rec.JobID), logger.Error(err))
	}
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ErrNotFound is returned when a job record does not exist.
var ErrNotFound = errors.New("job not found")

// TransitionError is returned when the state machine rejects a move.
type TransitionError struct {
	JobID string
	From  model.JobStatus
	To    model.JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: transition %s → %s is not allowed", e.JobID, e.From, e.To)
}

// Package orchestrator runs one scrape job: it fans out a task per enabled
// source, waits for all of them and records the aggregate on the job.
package orchestrator

import (
	"context"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

// Task is the description of work for one source. It carries everything a
// runner needs, so it can be executed outside the orchestrator's process.
type Task struct {
	Source       model.SourceConfig `json:"source"`
	JobID        string             `json:"jobId"`
	ParentJobID  string             `json:"parentJobId"`
	Environment  string             `json:"environment"`
	RecordsTable string             `json:"recordsTable"`
	JobsTable    string             `json:"jobsTable"`
}

// SubJobID derives the per-source job id from the run's job id.
func SubJobID(parentID, source string) string {
	return parentID + ":" + source
}

// Outcome is the state of one source within a run.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// SourceResult is what a runner reports for one task.
type SourceResult struct {
	Source    string        `json:"source"`
	JobID     string        `json:"jobId"`
	Outcome   Outcome       `json:"outcome"`
	Found     int           `json:"found"`
	Processed int           `json:"processed"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Excluded  int           `json:"excluded"`
	Errors    []string      `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

func (r *SourceResult) metadata() tracker.Metadata {
	return tracker.Metadata{
		Found:     r.Found,
		Processed: r.Processed,
		Inserted:  r.Inserted,
		Updated:   r.Updated,
		Errors:    r.Errors,
	}
}

// Runner executes a task and never returns without a result.
type Runner interface {
	Run(ctx context.Context, task Task) SourceResult
}

// Summary is the result of one run.
type Summary struct {
	JobID      string          `json:"jobId"`
	Status     model.JobStatus `json:"status"`
	Found      int             `json:"found"`
	Processed  int             `json:"processed"`
	Inserted   int             `json:"inserted"`
	Updated    int             `json:"updated"`
	Errors     []string        `json:"errors"`
	Sources    []SourceResult  `json:"sources"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// Duration is the wall-clock length of the run.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

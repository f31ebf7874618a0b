// Package tracker records the lifecycle of scrape jobs.
//
// Valid status graph:
//
//	pending ──► running ──► completed
//	   │           │
//	   │           └──────► failed
//	   └──► completed | failed
//
// completed and failed are terminal. Re-writing the current status is always
// permitted so retried writes stay idempotent.
package tracker

import (
	"fmt"

	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[model.JobStatus][]model.JobStatus{
	model.JobPending: {model.JobRunning, model.JobCompleted, model.JobFailed},
	model.JobRunning: {model.JobCompleted, model.JobFailed},
	// completed and failed are terminal: no outgoing transitions
}

// ParseStatus converts a raw string to a JobStatus, returning an error for
// unknown values.
func ParseStatus(s string) (model.JobStatus, error) {
	st := model.JobStatus(s)
	switch st {
	case model.JobPending, model.JobRunning, model.JobCompleted, model.JobFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed reports whether moving from → to is permitted. A
// self-transition is allowed for every status.
func IsTransitionAllowed(from, to model.JobStatus) bool {
	if from == to {
		_, err := ParseStatus(string(from))
		return err == nil
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

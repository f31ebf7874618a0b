package model

import "time"

// JobStatus values mirror the status column of the jobs table.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// SourceAll is the Source value of an orchestrator-level job.
const SourceAll = "all"

// JobRecord is one row of the jobs table: an orchestrator run or one source
// sub-task of that run.
type JobRecord struct {
	JobID       string     `json:"jobId"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Status      JobStatus  `json:"status"`
	Source      string     `json:"source"`
	Found       int        `json:"found"`
	Processed   int        `json:"processed"`
	Inserted    int        `json:"inserted"`
	Updated     int        `json:"updated"`
	Errors      []string   `json:"errors"`
	Environment string     `json:"environment"`
}

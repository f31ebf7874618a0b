package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/metrics"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

// SourceLoader returns the sources to scrape. Implemented by
// *registry.Registry.
type SourceLoader interface {
	LoadEnabledSources(ctx context.Context) ([]model.SourceConfig, error)
}

// Options tune a run.
type Options struct {
	Environment  string
	RecordsTable string
	JobsTable    string
	// MaxConcurrency caps simultaneous source tasks. 0 means one goroutine
	// per source.
	MaxConcurrency int
	// SourceTimeout bounds each source task. 0 disables the bound.
	SourceTimeout time.Duration
}

// Orchestrator coordinates a run across all enabled sources.
type Orchestrator struct {
	sources SourceLoader
	jobs    JobTracker
	runner  Runner
	opts    Options
	metrics *metrics.Metrics
	log     logger.Logger
	now     func() time.Time
}

// New returns an Orchestrator. m may be nil.
func New(sources SourceLoader, jobs JobTracker, runner Runner, opts Options, m *metrics.Metrics, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		sources: sources,
		jobs:    jobs,
		runner:  runner,
		opts:    opts,
		metrics: m,
		log:     log.With(logger.Component("orchestrator")),
		now:     time.Now,
	}
}

// NewJobID returns a fresh run id.
func NewJobID() string { return uuid.NewString() }

// RunOnce runs one job under a fresh id.
func (o *Orchestrator) RunOnce(ctx context.Context) (*Summary, error) {
	return o.Run(ctx, NewJobID())
}

// Run executes one job with the given id. Individual source failures never
// fail the job; the returned error is non-nil only when the job itself
// could not be carried out, in which case the summary status is failed.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (*Summary, error) {
	summary := &Summary{JobID: jobID, Status: model.JobPending, Errors: []string{}, Sources: []SourceResult{}, StartedAt: o.now()}
	log := o.log.With(logger.String("job_id", jobID))

	if _, err := o.jobs.Create(ctx, jobID, model.SourceAll); err != nil {
		return o.finishFailed(ctx, summary, fmt.Errorf("create job: %w", err), false)
	}

	sources, err := o.sources.LoadEnabledSources(ctx)
	if err != nil {
		log.Error("Configuration load failed", logger.Error(err))
		return o.finishFailed(ctx, summary, fmt.Errorf("configuration error: %w", err), true)
	}

	if len(sources) == 0 {
		log.Info("No enabled sources, nothing to scrape")
		return o.finishCompleted(ctx, summary)
	}

	if _, err := o.jobs.Transition(ctx, jobID, model.JobRunning, tracker.Metadata{}); err != nil {
		return o.finishFailed(ctx, summary, fmt.Errorf("start job: %w", err), true)
	}
	summary.Status = model.JobRunning
	log.Info("Running scrape", logger.Int("sources", len(sources)), logger.Int("max_concurrency", o.opts.MaxConcurrency))

	results := make([]SourceResult, len(sources))
	var g errgroup.Group
	if o.opts.MaxConcurrency > 0 {
		g.SetLimit(o.opts.MaxConcurrency)
	}
	for i, src := range sources {
		task := Task{
			Source:       src,
			JobID:        SubJobID(jobID, src.Name),
			ParentJobID:  jobID,
			Environment:  o.opts.Environment,
			RecordsTable: o.opts.RecordsTable,
			JobsTable:    o.opts.JobsTable,
		}
		results[i] = SourceResult{Source: src.Name, JobID: task.JobID, Outcome: OutcomeSubmitted}
		g.Go(func() error {
			results[i] = o.runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors

	for _, r := range results {
		summary.Found += r.Found
		summary.Processed += r.Processed
		summary.Inserted += r.Inserted
		summary.Updated += r.Updated
		for _, e := range r.Errors {
			summary.Errors = append(summary.Errors, fmt.Sprintf("[%s] %s", r.Source, e))
		}
	}
	summary.Sources = results
	return o.finishCompleted(ctx, summary)
}

// runTask applies the per-source timeout and turns a panic into a failed
// result so sibling tasks are unaffected.
func (o *Orchestrator) runTask(ctx context.Context, task Task) (res SourceResult) {
	start := o.now()
	defer func() {
		if p := recover(); p != nil {
			o.log.Error("Source task panicked",
				logger.String("source", task.Source.Name),
				logger.Any("panic", p),
				logger.String("stack", string(debug.Stack())),
			)
			res = SourceResult{
				Source:   task.Source.Name,
				JobID:    task.JobID,
				Outcome:  OutcomeFailed,
				Errors:   []string{fmt.Sprintf("panic: %v", p)},
				Duration: o.now().Sub(start),
			}
			md := tracker.Metadata{Errors: res.Errors}
			if _, err := o.jobs.Transition(context.WithoutCancel(ctx), task.JobID, model.JobFailed, md); err != nil {
				o.log.Warn("Failed to record panicked sub-job", logger.String("job_id", task.JobID), logger.Error(err))
			}
		}
	}()

	if o.opts.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.SourceTimeout)
		defer cancel()
	}
	return o.runner.Run(ctx, task)
}

func (o *Orchestrator) finishCompleted(ctx context.Context, summary *Summary) (*Summary, error) {
	summary.Status = model.JobCompleted
	summary.FinishedAt = o.now()
	md := tracker.Metadata{
		Found:     summary.Found,
		Processed: summary.Processed,
		Inserted:  summary.Inserted,
		Updated:   summary.Updated,
		Errors:    summary.Errors,
	}
	// The final write must land even if the caller is shutting down.
	if _, err := o.jobs.Transition(context.WithoutCancel(ctx), summary.JobID, model.JobCompleted, md); err != nil {
		o.log.Error("Failed to record job completion", logger.String("job_id", summary.JobID), logger.Error(err))
		o.metrics.ObserveRun(string(model.JobCompleted), summary.Duration())
		return summary, fmt.Errorf("record completion: %w", err)
	}
	o.metrics.ObserveRun(string(model.JobCompleted), summary.Duration())
	o.log.Info("Scrape job completed",
		logger.String("job_id", summary.JobID),
		logger.Int("found", summary.Found),
		logger.Int("processed", summary.Processed),
		logger.Int("inserted", summary.Inserted),
		logger.Int("updated", summary.Updated),
		logger.Int("errors", len(summary.Errors)),
		logger.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

func (o *Orchestrator) finishFailed(ctx context.Context, summary *Summary, cause error, tracked bool) (*Summary, error) {
	summary.Status = model.JobFailed
	summary.FinishedAt = o.now()
	summary.Errors = append(summary.Errors, cause.Error())
	if tracked {
		md := tracker.Metadata{Errors: summary.Errors}
		if _, err := o.jobs.Transition(context.WithoutCancel(ctx), summary.JobID, model.JobFailed, md); err != nil {
			o.log.Error("Failed to record job failure", logger.String("job_id", summary.JobID), logger.Error(err))
		}
	}
	o.metrics.ObserveRun(string(model.JobFailed), summary.Duration())
	return summary, cause
}

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/dedup"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/metrics"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/normalize"
	"github.com/mochatech1725/scholarship-scraper2/internal/scraper"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

// AdapterSet resolves the adapter for a source kind.
type AdapterSet interface {
	For(kind model.SourceKind) (scraper.Adapter, error)
}

// Persister writes a normalized record unless it already exists.
type Persister interface {
	Upsert(ctx context.Context, rec model.ScholarshipRecord) (dedup.Outcome, error)
}

// JobTracker records job state. Implemented by *tracker.Tracker.
type JobTracker interface {
	Create(ctx context.Context, jobID, source string) (*model.JobRecord, error)
	Transition(ctx context.Context, jobID string, status model.JobStatus, md tracker.Metadata) (*model.JobRecord, error)
}

// Worker runs the full scrape cycle for a single source: fetch, normalize,
// exclusion filter, dedup and persist. Per-item failures are recorded and
// skipped.
type Worker struct {
	adapters   AdapterSet
	normalizer *normalize.Normalizer
	store      Persister
	jobs       JobTracker
	metrics    *metrics.Metrics
	log        logger.Logger
}

// NewWorker constructs a Worker. m may be nil.
func NewWorker(adapters AdapterSet, normalizer *normalize.Normalizer, store Persister, jobs JobTracker, m *metrics.Metrics, log logger.Logger) *Worker {
	return &Worker{
		adapters:   adapters,
		normalizer: normalizer,
		store:      store,
		jobs:       jobs,
		metrics:    m,
		log:        log.With(logger.Component("worker")),
	}
}

// Run implements Runner. The sub-job's terminal status is written even when
// ctx has been cancelled.
func (w *Worker) Run(ctx context.Context, task Task) SourceResult {
	start := time.Now()
	src := task.Source
	res := SourceResult{Source: src.Name, JobID: task.JobID, Outcome: OutcomeSubmitted, Errors: []string{}}
	log := w.log.With(logger.String("source", src.Name), logger.String("job_id", task.JobID))

	tracked := w.startSubJob(ctx, task, log)
	log.Info("Starting scrape", logger.String("kind", string(src.Kind)))

	if err := w.scrape(ctx, task, &res, log); err != nil {
		res.Outcome = OutcomeFailed
		res.Errors = append(res.Errors, err.Error())
	} else {
		res.Outcome = OutcomeSucceeded
	}
	res.Duration = time.Since(start)

	if tracked {
		status := model.JobCompleted
		if res.Outcome == OutcomeFailed {
			status = model.JobFailed
		}
		if _, err := w.jobs.Transition(context.WithoutCancel(ctx), task.JobID, status, res.metadata()); err != nil {
			log.Error("Failed to record sub-job result", logger.Error(err))
		}
	}
	w.metrics.ObserveSource(src.Name, string(res.Outcome))

	log.Info("Scrape done",
		logger.String("outcome", string(res.Outcome)),
		logger.Int("found", res.Found),
		logger.Int("processed", res.Processed),
		logger.Int("inserted", res.Inserted),
		logger.Int("updated", res.Updated),
		logger.Int("excluded", res.Excluded),
		logger.Int("errors", len(res.Errors)),
		logger.Duration("duration", res.Duration),
	)
	return res
}

// startSubJob creates the sub-job and moves it to running. Tracking failures
// are logged; the scrape still runs.
func (w *Worker) startSubJob(ctx context.Context, task Task, log logger.Logger) bool {
	if _, err := w.jobs.Create(ctx, task.JobID, task.Source.Name); err != nil {
		log.Warn("Sub-job not tracked", logger.Error(err))
		return false
	}
	if _, err := w.jobs.Transition(ctx, task.JobID, model.JobRunning, tracker.Metadata{}); err != nil {
		log.Warn("Sub-job stuck in pending", logger.Error(err))
	}
	return true
}

// scrape returns an error only when the source as a whole failed.
func (w *Worker) scrape(ctx context.Context, task Task, res *SourceResult, log logger.Logger) error {
	src := task.Source
	adapter, err := w.adapters.For(src.Kind)
	if err != nil {
		return err
	}

	fetched, err := adapter.Fetch(ctx, src)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	res.Found = len(fetched.Records)
	res.Errors = append(res.Errors, fetched.Errors...)

	meta := normalize.Meta{Source: src.Name, JobID: task.ParentJobID}
	var inserted, updated, excluded, invalid, failed int
	for i, partial := range fetched.Records {
		if err := ctx.Err(); err != nil {
			res.Inserted, res.Updated, res.Excluded = inserted, updated, excluded
			w.recordCounts(src.Name, inserted, updated, excluded, invalid, failed)
			return fmt.Errorf("stopped after %d of %d records: %w", i, res.Found, err)
		}

		rec, warnings, err := w.normalizer.Normalize(partial, meta)
		if err != nil {
			invalid++
			res.Errors = append(res.Errors, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		for _, warn := range warnings {
			log.Debug("Normalization warning", logger.String("record", rec.Name), logger.String("warning", warn))
		}

		// ── Exclusion filter ───────────────────────────────
		if scraper.Excluded(rec, src.ExcludeTerms) {
			excluded++
			continue
		}
		res.Processed++

		// ── Dedup + persist ────────────────────────────────
		outcome, err := w.store.Upsert(ctx, rec)
		if err != nil {
			failed++
			res.Errors = append(res.Errors, fmt.Sprintf("persist %q: %v", rec.Name, err))
			continue
		}
		switch outcome {
		case dedup.OutcomeInserted:
			inserted++
		case dedup.OutcomeUpdated:
			updated++
		}
	}

	res.Inserted, res.Updated, res.Excluded = inserted, updated, excluded
	w.recordCounts(src.Name, inserted, updated, excluded, invalid, failed)
	return nil
}

func (w *Worker) recordCounts(source string, inserted, updated, excluded, invalid, failed int) {
	w.metrics.AddRecords(source, "inserted", inserted)
	w.metrics.AddRecords(source, "updated", updated)
	w.metrics.AddRecords(source, "excluded", excluded)
	w.metrics.AddRecords(source, "invalid", invalid)
	w.metrics.AddRecords(source, "failed", failed)
}

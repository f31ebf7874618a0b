// Package scheduler wires up the cron job that periodically triggers a scrape
// run across all enabled sources.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/metrics"
	"github.com/mochatech1725/scholarship-scraper2/internal/orchestrator"
)

// ErrRunInProgress is returned when another run holds the lock.
var ErrRunInProgress = errors.New("a scrape run is already in progress")

// JobRunner executes one run. Implemented by *orchestrator.Orchestrator.
type JobRunner interface {
	Run(ctx context.Context, jobID string) (*orchestrator.Summary, error)
}

// Scheduler wraps robfig/cron and manages the scrape loop. Every run, whether
// from a tick, startup or a manual trigger, goes through the run lock.
type Scheduler struct {
	cron    *cron.Cron
	runner  JobRunner
	lock    Locker
	spec    string // cron spec, e.g. "@every 6h"
	metrics *metrics.Metrics
	log     logger.Logger

	mu      sync.Mutex
	baseCtx context.Context
	wg      sync.WaitGroup
}

// New creates a Scheduler firing on spec. lock and m may be nil.
func New(runner JobRunner, lock Locker, spec string, m *metrics.Metrics, log logger.Logger) *Scheduler {
	log = log.With(logger.Component("scheduler"))
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{log: log})),
		runner:  runner,
		lock:    lock,
		spec:    spec,
		metrics: m,
		log:     log,
		baseCtx: context.Background(),
	}
}

// Start registers the job and starts the scheduler. Also runs one scrape
// immediately so records are fresh without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	_, err := s.cron.AddFunc(s.spec, func() {
		s.runScheduled(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("Cron started", logger.String("spec", s.spec))

	// Run immediately on startup (non-blocking)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runScheduled(ctx)
	}()

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for in-flight runs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Cron stopped")
}

// RunNow runs one job synchronously under the lock.
func (s *Scheduler) RunNow(ctx context.Context) (*orchestrator.Summary, error) {
	token, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, token)
	return s.runner.Run(ctx, orchestrator.NewJobID())
}

// Trigger starts a run in the background and returns its job id. It fails
// fast with ErrRunInProgress when another run holds the lock.
func (s *Scheduler) Trigger(ctx context.Context) (string, error) {
	token, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	runCtx := s.baseCtx
	s.mu.Unlock()

	jobID := orchestrator.NewJobID()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(runCtx, token)
		if _, err := s.runner.Run(runCtx, jobID); err != nil {
			s.log.Error("Triggered run failed", logger.String("job_id", jobID), logger.Error(err))
		}
	}()
	return jobID, nil
}

// runScheduled runs one job unless another run holds the lock.
func (s *Scheduler) runScheduled(ctx context.Context) {
	s.log.Info("Scrape cycle started")

	summary, err := s.RunNow(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.metrics.LockSkipped()
		s.log.Warn("Previous run still in progress, skipping tick")
		return
	case err != nil:
		s.log.Error("Scrape cycle failed", logger.Error(err))
		return
	}

	s.log.Info("Scrape cycle complete",
		logger.String("job_id", summary.JobID),
		logger.Int("inserted", summary.Inserted),
		logger.Int("updated", summary.Updated),
		logger.Int("errors", len(summary.Errors)),
	)
}

func (s *Scheduler) acquire(ctx context.Context) (string, error) {
	if s.lock == nil {
		return "", nil
	}
	token, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrRunInProgress
	}
	return token, nil
}

func (s *Scheduler) release(ctx context.Context, token string) {
	if s.lock == nil {
		return
	}
	if err := s.lock.Release(context.WithoutCancel(ctx), token); err != nil {
		s.log.Warn("Run lock release failed", logger.Error(err))
	}
}

// cronLogger routes robfig/cron's key-value logging to zap.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}

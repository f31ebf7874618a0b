package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/mochatech1725/scholarship-scraper2/internal/ai"
	"github.com/mochatech1725/scholarship-scraper2/internal/api"
	"github.com/mochatech1725/scholarship-scraper2/internal/archive"
	"github.com/mochatech1725/scholarship-scraper2/internal/config"
	"github.com/mochatech1725/scholarship-scraper2/internal/db"
	"github.com/mochatech1725/scholarship-scraper2/internal/dedup"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/metrics"
	"github.com/mochatech1725/scholarship-scraper2/internal/normalize"
	"github.com/mochatech1725/scholarship-scraper2/internal/orchestrator"
	"github.com/mochatech1725/scholarship-scraper2/internal/registry"
	"github.com/mochatech1725/scholarship-scraper2/internal/retry"
	"github.com/mochatech1725/scholarship-scraper2/internal/scheduler"
	"github.com/mochatech1725/scholarship-scraper2/internal/scraper"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

const (
	seenCacheTTL = 7 * 24 * time.Hour
	httpTimeout  = 30 * time.Second
	maxRetryWait = 2 * time.Minute
)

// app holds every long-lived handle. Constructed once per process and passed
// down explicitly.
type app struct {
	cfg *config.Config
	log logger.Logger

	pool *pgxpool.Pool
	rdb  *redis.Client

	metricsReg   *prometheus.Registry
	registry     *registry.Registry
	tracker      *tracker.Tracker
	orchestrator *orchestrator.Orchestrator
	scheduler    *scheduler.Scheduler
}

func loadConfigAndLogger() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Environment == "development"})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log.With(logger.String("env", cfg.Environment)), nil
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Info("Connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, int32(max(cfg.MaxConcurrency, 4)*2))
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.pool = pool
	if err := db.EnsureTables(ctx, pool, "scholarship_sources", cfg.RecordsTable, cfg.JobsTable); err != nil {
		pool.Close()
		return nil, err
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Info("Connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.rdb = rdb

	// ── Metrics ──────────────────────────────────────────────────────────────
	a.metricsReg = prometheus.NewRegistry()
	a.metricsReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.metricsReg)

	// ── Adapters ─────────────────────────────────────────────────────────────
	sink, err := archive.New(cfg.MinIO, log)
	if err != nil {
		log.Warn("Archive unavailable, continuing without it", logger.Error(err))
		sink = archive.Nop{}
	} else if arch, ok := sink.(*archive.Archiver); ok {
		if err := arch.EnsureBucket(ctx); err != nil {
			log.Warn("Archive bucket unavailable, continuing without it", logger.Error(err))
			sink = archive.Nop{}
		}
	}

	var gen ai.Generator
	if g, err := ai.NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel); err == nil {
		gen = g
	} else {
		log.Warn("Generative model not configured; discovery and search sources will fail", logger.Error(err))
	}

	policy := retry.Policy{BaseDelay: cfg.RetryBaseDelay, MaxDelay: maxRetryWait}
	httpClient := &http.Client{Timeout: httpTimeout}
	pages := scraper.NewPageFetcher(httpClient, policy, cfg.RetryMaxAttempts, "")
	adapters := scraper.NewSet(scraper.Deps{
		HTTPClient:   httpClient,
		Generator:    gen,
		Search:       scraper.NewWebSearchClient(cfg.SearchAPIURL, cfg.SearchAPIKey, pages),
		Archive:      sink,
		Secrets:      scraper.EnvSecrets{},
		Retry:        policy,
		MaxAttempts:  cfg.RetryMaxAttempts,
		AIRatePerSec: cfg.AIRatePerSec,
		Log:          log,
	})

	// ── Stores ───────────────────────────────────────────────────────────────
	a.registry = registry.New(registry.NewPostgresStore(pool), log)
	a.tracker = tracker.New(tracker.NewPostgresStore(pool, cfg.JobsTable), tracker.NewRedisPublisher(rdb), cfg.Environment, log)
	deduper := dedup.New(dedup.NewPostgresStore(pool, cfg.RecordsTable), dedup.NewRedisCache(rdb, seenCacheTTL), log)

	// ── Orchestration ────────────────────────────────────────────────────────
	worker := orchestrator.NewWorker(adapters, normalize.New(cfg.DescriptionMaxLen, cfg.EligibilityMaxLen), deduper, a.tracker, m, log)
	a.orchestrator = orchestrator.New(a.registry, a.tracker, worker, orchestrator.Options{
		Environment:    cfg.Environment,
		RecordsTable:   cfg.RecordsTable,
		JobsTable:      cfg.JobsTable,
		MaxConcurrency: cfg.MaxConcurrency,
		SourceTimeout:  cfg.SourceTimeout,
	}, m, log)

	lock := scheduler.NewRedisLock(rdb, scheduler.RunLockKey, cfg.RunLockTTL)
	a.scheduler = scheduler.New(a.orchestrator, lock, cfg.ScrapeSchedule, m, log)
	return a, nil
}

func (a *app) handler() *api.Handler {
	checks := map[string]api.Check{
		"postgres": a.pool.Ping,
		"redis":    func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() },
	}
	return api.NewHandler(a.tracker, a.scheduler, a.registry, checks, a.metricsReg, a.log)
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.log.Sync()
}

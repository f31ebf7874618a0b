// Package api implements the HTTP status and trigger surface of the service.
//
// Routes:
//
//	GET  /health      → dependency checks
//	GET  /jobs        → most recent job records (?limit=N)
//	GET  /jobs/:id    → one job record (run or source sub-job)
//	POST /runs        → start a scrape run in the background
//	GET  /sources     → enabled, validated sources
//	GET  /sources/:name → one source by name, enabled or not
//	GET  /metrics     → Prometheus exposition
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/registry"
	"github.com/mochatech1725/scholarship-scraper2/internal/scheduler"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

// ─── Dependencies ────────────────────────────────────────────────────────────

// JobReader reads job records. Implemented by *tracker.Tracker.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*model.JobRecord, error)
	List(ctx context.Context, limit int) ([]model.JobRecord, error)
}

// RunTrigger starts a run. Implemented by *scheduler.Scheduler.
type RunTrigger interface {
	Trigger(ctx context.Context) (string, error)
}

// SourceLister reads sources. Implemented by *registry.Registry.
type SourceLister interface {
	LoadEnabledSources(ctx context.Context) ([]model.SourceConfig, error)
	GetSource(ctx context.Context, name string) (*model.SourceConfig, error)
}

// Check probes one dependency.
type Check func(ctx context.Context) error

// ValidationError is a malformed request.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

const (
	healthTimeout = 5 * time.Second
	maxJobLimit   = 500
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	jobs     JobReader
	trigger  RunTrigger
	sources  SourceLister
	checks   map[string]Check
	gatherer prometheus.Gatherer
	log      logger.Logger
}

// NewHandler returns a configured Handler. gatherer may be nil to disable
// /metrics.
func NewHandler(jobs JobReader, trigger RunTrigger, sources SourceLister, checks map[string]Check, gatherer prometheus.Gatherer, log logger.Logger) *Handler {
	return &Handler{
		jobs:     jobs,
		trigger:  trigger,
		sources:  sources,
		checks:   checks,
		gatherer: gatherer,
		log:      log.With(logger.Component("api")),
	}
}

// Router builds the gin engine with all routes mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(h.log))

	r.GET("/health", h.health)
	r.GET("/jobs", h.listJobs)
	r.GET("/jobs/:id", h.getJob)
	r.POST("/runs", h.triggerRun)
	r.GET("/sources", h.listSources)
	r.GET("/sources/:name", h.getSource)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := "healthy"
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = "unhealthy"
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"checks":    results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) listJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJobLimit {
			h.fail(c, &ValidationError{Msg: "limit must be an integer between 1 and 500"})
			return
		}
		limit = n
	}

	jobs, err := h.jobs.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *Handler) getJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) triggerRun(c *gin.Context) {
	jobID, err := h.trigger.Trigger(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": jobID, "status": model.JobPending})
}

func (h *Handler) listSources(c *gin.Context) {
	sources, err := h.sources.LoadEnabledSources(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

func (h *Handler) getSource(c *gin.Context) {
	src, err := h.sources.GetSource(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, src)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// fail maps domain errors to HTTP status codes.
func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		ve      *ValidationError
		invalid *registry.ConfigInvalidError
	)
	switch {
	case errors.Is(err, tracker.ErrNotFound), errors.Is(err, registry.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Msg})
	case errors.Is(err, scheduler.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrConfigUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "configuration store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

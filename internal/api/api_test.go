package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochatech1725/scholarship-scraper2/internal/api"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/metrics"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/registry"
	"github.com/mochatech1725/scholarship-scraper2/internal/scheduler"
	"github.com/mochatech1725/scholarship-scraper2/internal/testutil"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeTrigger struct {
	jobID string
	err   error
	calls int
}

func (f *fakeTrigger) Trigger(context.Context) (string, error) {
	f.calls++
	return f.jobID, f.err
}

type fixture struct {
	jobs    *testutil.MemJobStore
	tracker *tracker.Tracker
	sources *testutil.MemSourceStore
	trigger *fakeTrigger
	checks  map[string]api.Check
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		jobs:    testutil.NewMemJobStore(),
		sources: &testutil.MemSourceStore{},
		trigger: &fakeTrigger{jobID: "job-1"},
		checks:  map[string]api.Check{"postgres": func(context.Context) error { return nil }},
	}
	f.tracker = tracker.New(f.jobs, nil, "test", logger.NewNop())

	reg := prometheus.NewRegistry()
	metrics.New(reg).ObserveSource("fastweb", "succeeded")

	h := api.NewHandler(f.tracker, f.trigger, registry.New(f.sources, logger.NewNop()), f.checks, reg, logger.NewNop())
	f.router = h.Router()
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	f.checks["redis"] = func(context.Context) error { return errors.New("dial tcp: refused") }
	rec = f.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "dial tcp: refused", body["checks"].(map[string]any)["redis"])
}

func TestJobs_ListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tracker.Create(ctx, "run-1", model.SourceAll)
	require.NoError(t, err)
	_, err = f.tracker.Transition(ctx, "run-1", model.JobCompleted, tracker.Metadata{Found: 3, Inserted: 2, Updated: 1})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/jobs?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode(t, rec)["jobs"].([]any)
	require.Len(t, jobs, 1)

	rec = f.do(http.MethodGet, "/jobs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var job model.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 2, job.Inserted)
	assert.NotNil(t, job.EndTime)
}

func TestJobs_Errors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/jobs/nope").Code)
	for _, q := range []string{"abc", "0", "501"} {
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/jobs?limit="+q).Code, q)
	}
}

func TestTriggerRun(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/runs")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "job-1", decode(t, rec)["jobId"])

	f.trigger.err = scheduler.ErrRunInProgress
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/runs").Code)

	f.trigger.err = errors.New("redis down")
	rec = f.do(http.MethodPost, "/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["error"])
	assert.Equal(t, 3, f.trigger.calls)
}

func TestSources(t *testing.T) {
	f := newFixture(t)
	f.sources.Sources = []model.SourceConfig{
		testutil.Source("web", model.KindSearch, map[string]any{"terms": []string{"nursing"}}),
	}

	rec := f.do(http.MethodGet, "/sources")
	require.Equal(t, http.StatusOK, rec.Code)
	sources := decode(t, rec)["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "web", sources[0].(map[string]any)["name"])

	f.sources.Err = errors.New("connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/sources").Code)
}

func TestGetSource(t *testing.T) {
	f := newFixture(t)
	f.sources.Sources = []model.SourceConfig{
		testutil.Source("web", model.KindSearch, map[string]any{"terms": []string{"nursing"}}),
		testutil.Source("broken", model.KindCrawl, map[string]any{"url": "https://example.org"}),
	}

	rec := f.do(http.MethodGet, "/sources/web")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "web", body["name"])
	assert.Equal(t, "search", body["kind"])
	assert.Equal(t, []any{"nursing"}, body["search"].(map[string]any)["terms"])

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/sources/missing").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(http.MethodGet, "/sources/broken").Code)

	f.sources.Err = errors.New("connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/sources/web").Code)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `scholarsync_source_results_total{outcome="succeeded",source="fastweb"} 1`))
}

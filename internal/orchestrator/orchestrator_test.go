package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochatech1725/scholarship-scraper2/internal/dedup"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/metrics"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/normalize"
	"github.com/mochatech1725/scholarship-scraper2/internal/orchestrator"
	"github.com/mochatech1725/scholarship-scraper2/internal/registry"
	"github.com/mochatech1725/scholarship-scraper2/internal/scraper"
	"github.com/mochatech1725/scholarship-scraper2/internal/testutil"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

type fetchFunc func(ctx context.Context) (*scraper.Result, error)

// scriptedAdapter answers per source name and tracks concurrency.
type scriptedAdapter struct {
	mu       sync.Mutex
	fns      map[string]fetchFunc
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (a *scriptedAdapter) Fetch(ctx context.Context, src model.SourceConfig) (*scraper.Result, error) {
	a.calls.Add(1)
	n := a.inflight.Add(1)
	defer a.inflight.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}

	a.mu.Lock()
	fn, ok := a.fns[src.Name]
	a.mu.Unlock()
	if !ok {
		return &scraper.Result{}, nil
	}
	return fn(ctx)
}

func records(recs ...model.PartialRecord) fetchFunc {
	return func(context.Context) (*scraper.Result, error) {
		return &scraper.Result{Records: recs}, nil
	}
}

var (
	apiPayload   = map[string]any{"endpoint": "https://api.example.org", "fieldMap": map[string]string{"name": "title"}}
	crawlPayload = map[string]any{"url": "https://example.org/list", "selectors": map[string]string{"row": ".r", "name": "h3"}}
)

type harness struct {
	sources *testutil.MemSourceStore
	records *testutil.MemRecordStore
	jobs    *testutil.MemJobStore
	adapter *scriptedAdapter
	opts    orchestrator.Options
	metrics *metrics.Metrics
}

func newHarness(sources ...model.SourceConfig) *harness {
	return &harness{
		sources: &testutil.MemSourceStore{Sources: sources},
		records: testutil.NewMemRecordStore(),
		jobs:    testutil.NewMemJobStore(),
		adapter: &scriptedAdapter{fns: map[string]fetchFunc{}},
		opts:    orchestrator.Options{Environment: "test", RecordsTable: "scholarships", JobsTable: "scrape_jobs"},
	}
}

func (h *harness) build() *orchestrator.Orchestrator {
	log := logger.NewNop()
	jobs := tracker.New(h.jobs, nil, "test", log)
	adapters := scraper.NewSetFrom(map[model.SourceKind]scraper.Adapter{
		model.KindAPI:   h.adapter,
		model.KindCrawl: h.adapter,
	})
	worker := orchestrator.NewWorker(adapters, normalize.New(1000, 500), dedup.New(h.records, nil, log), jobs, h.metrics, log)
	return orchestrator.New(registry.New(h.sources, log), jobs, worker, h.opts, h.metrics, log)
}

func TestRunOnce_EndToEnd(t *testing.T) {
	h := newHarness(
		testutil.Source("fastweb", model.KindAPI, apiPayload),
		testutil.Source("collegeboard", model.KindCrawl, crawlPayload),
	)
	apiRecs := testutil.Partials("API", 5)
	crawlRecs := testutil.Partials("Crawl", 3)
	h.adapter.fns["fastweb"] = records(apiRecs...)
	h.adapter.fns["collegeboard"] = records(crawlRecs...)

	// One crawl item is already stored from an earlier run.
	prior, _, err := normalize.New(1000, 500).Normalize(crawlRecs[2], normalize.Meta{Source: "collegeboard", JobID: "earlier"})
	require.NoError(t, err)
	_, err = h.records.Insert(context.Background(), prior)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	h.metrics = metrics.New(reg)

	summary, err := h.build().RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, summary.Status)
	assert.Equal(t, 8, summary.Found)
	assert.Equal(t, 8, summary.Processed)
	assert.Equal(t, 7, summary.Inserted)
	assert.Equal(t, 1, summary.Updated)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 8, h.records.Len())

	require.Len(t, summary.Sources, 2)
	for _, s := range summary.Sources {
		assert.Equal(t, orchestrator.OutcomeSucceeded, s.Outcome, s.Source)
		assert.Equal(t, orchestrator.SubJobID(summary.JobID, s.Source), s.JobID)
	}

	parent := h.jobs.Job(summary.JobID)
	require.NotNil(t, parent)
	assert.Equal(t, model.JobCompleted, parent.Status)
	assert.Equal(t, model.SourceAll, parent.Source)
	assert.Equal(t, 7, parent.Inserted)
	assert.NotNil(t, parent.EndTime)

	sub := h.jobs.Job(summary.JobID + ":collegeboard")
	require.NotNil(t, sub)
	assert.Equal(t, model.JobCompleted, sub.Status)
	assert.Equal(t, 3, sub.Found)
	assert.Equal(t, 2, sub.Inserted)
	assert.Equal(t, 1, sub.Updated)

	stored, ok := h.records.Get(prior.ID, prior.Deadline)
	require.True(t, ok)
	assert.Equal(t, "earlier", stored.JobID, "existing records keep their content")

	n, err := promtest.GatherAndCount(reg, "scholarsync_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunOnce_SecondRunIsIdempotent(t *testing.T) {
	h := newHarness(testutil.Source("fastweb", model.KindAPI, apiPayload))
	h.adapter.fns["fastweb"] = records(testutil.Partials("API", 4)...)
	o := h.build()

	first, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, first.Inserted)

	second, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, second.JobID)
	assert.Equal(t, 4, second.Found)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 4, second.Updated)
	assert.Equal(t, 4, h.records.Len())
}

func TestRunOnce_SourceFailureIsIsolated(t *testing.T) {
	h := newHarness(
		testutil.Source("fastweb", model.KindAPI, apiPayload),
		testutil.Source("broken", model.KindCrawl, crawlPayload),
	)
	nameless := model.PartialRecord{Organization: "Ghost Org"}
	h.adapter.fns["fastweb"] = func(context.Context) (*scraper.Result, error) {
		return &scraper.Result{
			Records: append(testutil.Partials("API", 2), nameless),
			Errors:  []string{"page 2: timeout"},
		}, nil
	}
	h.adapter.fns["broken"] = func(context.Context) (*scraper.Result, error) {
		return nil, errors.New("listing unreachable")
	}

	summary, err := h.build().RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, summary.Status)
	assert.Equal(t, 3, summary.Found)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Inserted)
	assert.ElementsMatch(t, []string{
		"[fastweb] page 2: timeout",
		"[fastweb] item 2: candidate has no name",
		"[broken] fetch: listing unreachable",
	}, summary.Errors)

	outcomes := map[string]orchestrator.Outcome{}
	for _, s := range summary.Sources {
		outcomes[s.Source] = s.Outcome
	}
	assert.Equal(t, orchestrator.OutcomeSucceeded, outcomes["fastweb"])
	assert.Equal(t, orchestrator.OutcomeFailed, outcomes["broken"])

	sub := h.jobs.Job(summary.JobID + ":broken")
	require.NotNil(t, sub)
	assert.Equal(t, model.JobFailed, sub.Status)
	assert.Equal(t, []string{"fetch: listing unreachable"}, sub.Errors)
}

func TestRunOnce_ZeroSources(t *testing.T) {
	h := newHarness()
	summary, err := h.build().RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, summary.Status)
	assert.Zero(t, summary.Found)
	assert.Zero(t, summary.Inserted)
	assert.Empty(t, summary.Errors)
	assert.Empty(t, summary.Sources)

	job := h.jobs.Job(summary.JobID)
	require.NotNil(t, job)
	assert.Equal(t, model.JobCompleted, job.Status)
}

func TestRunOnce_ConfigUnavailableFailsJob(t *testing.T) {
	h := newHarness(testutil.Source("fastweb", model.KindAPI, apiPayload))
	h.sources.Err = errors.New("connection refused")

	summary, err := h.build().RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrConfigUnavailable)

	assert.Equal(t, model.JobFailed, summary.Status)
	require.Len(t, summary.Errors, 1)
	assert.True(t, strings.HasPrefix(summary.Errors[0], "configuration error:"), summary.Errors[0])
	assert.Zero(t, h.adapter.calls.Load())

	job := h.jobs.Job(summary.JobID)
	require.NotNil(t, job)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Equal(t, summary.Errors, job.Errors)
	assert.NotNil(t, job.EndTime)
}

func TestRunOnce_SourceTimeout(t *testing.T) {
	h := newHarness(
		testutil.Source("slow", model.KindAPI, apiPayload),
		testutil.Source("fast", model.KindCrawl, crawlPayload),
	)
	h.opts.SourceTimeout = 50 * time.Millisecond
	h.adapter.fns["slow"] = func(ctx context.Context) (*scraper.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	h.adapter.fns["fast"] = records(testutil.Partials("Fast", 1)...)

	summary, err := h.build().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, summary.Status)
	assert.Equal(t, 1, summary.Inserted)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "[slow]")
	assert.Contains(t, summary.Errors[0], context.DeadlineExceeded.Error())

	sub := h.jobs.Job(summary.JobID + ":slow")
	require.NotNil(t, sub)
	assert.Equal(t, model.JobFailed, sub.Status, "terminal status is written after the deadline")
}

func TestRunOnce_ConcurrencyCap(t *testing.T) {
	var sources []model.SourceConfig
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		sources = append(sources, testutil.Source(name, model.KindAPI, apiPayload))
	}
	h := newHarness(sources...)
	h.opts.MaxConcurrency = 2
	for _, src := range sources {
		h.adapter.fns[src.Name] = func(context.Context) (*scraper.Result, error) {
			time.Sleep(20 * time.Millisecond)
			return &scraper.Result{}, nil
		}
	}

	summary, err := h.build().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Sources, 5)
	assert.Equal(t, int32(5), h.adapter.calls.Load())
	assert.LessOrEqual(t, h.adapter.peak.Load(), int32(2))
}

func TestRunOnce_PanicBecomesFailure(t *testing.T) {
	h := newHarness(
		testutil.Source("explodes", model.KindAPI, apiPayload),
		testutil.Source("fine", model.KindCrawl, crawlPayload),
	)
	h.adapter.fns["explodes"] = func(context.Context) (*scraper.Result, error) {
		panic("nil map write")
	}
	h.adapter.fns["fine"] = records(testutil.Partials("Fine", 2)...)

	summary, err := h.build().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, summary.Status)
	assert.Equal(t, 2, summary.Inserted)
	assert.Contains(t, summary.Errors, "[explodes] panic: nil map write")

	sub := h.jobs.Job(summary.JobID + ":explodes")
	require.NotNil(t, sub)
	assert.Equal(t, model.JobFailed, sub.Status)
}

func TestRunOnce_ExcludeTerms(t *testing.T) {
	src := testutil.Source("fastweb", model.KindAPI, apiPayload)
	src.ExcludeTerms = []string{"scholarship b"}
	h := newHarness(src)
	h.adapter.fns["fastweb"] = records(testutil.Partials("API", 3)...)

	summary, err := h.build().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Found)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Sources[0].Excluded)
	assert.Equal(t, 2, h.records.Len())
}

func TestRunOnce_PersistErrorsAreItemErrors(t *testing.T) {
	h := newHarness(testutil.Source("fastweb", model.KindAPI, apiPayload))
	h.records.InsertErr = errors.New("disk full")
	h.adapter.fns["fastweb"] = records(testutil.Partials("API", 2)...)

	summary, err := h.build().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Inserted)
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "disk full")
	assert.Equal(t, orchestrator.OutcomeSucceeded, summary.Sources[0].Outcome)
}

func TestRun_UsesGivenJobID(t *testing.T) {
	h := newHarness()
	summary, err := h.build().Run(context.Background(), "job-123")
	require.NoError(t, err)
	assert.Equal(t, "job-123", summary.JobID)
	assert.NotNil(t, h.jobs.Job("job-123"))
}

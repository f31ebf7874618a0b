// Package metrics exposes Prometheus instrumentation for scrape runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scholarsync"

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	sourceResults *prometheus.CounterVec
	records       *prometheus.CounterVec
	lockSkips     prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestrator runs by terminal status.",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of orchestrator runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		sourceResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_results_total",
			Help:      "Per-source sub-task outcomes.",
		}, []string{"source", "outcome"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Candidate records by source and outcome (inserted, updated, excluded, invalid, failed).",
		}, []string{"source", "outcome"}),
		lockSkips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_lock_skips_total",
			Help:      "Scheduled runs skipped because another run held the lock.",
		}),
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// ObserveSource records a finished source sub-task.
func (m *Metrics) ObserveSource(source, outcome string) {
	if m == nil {
		return
	}
	m.sourceResults.WithLabelValues(source, outcome).Inc()
}

// AddRecords counts n records for source with outcome.
func (m *Metrics) AddRecords(source, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(source, outcome).Add(float64(n))
}

// LockSkipped counts a run skipped by the run lock.
func (m *Metrics) LockSkipped() {
	if m == nil {
		return
	}
	m.lockSkips.Inc()
}

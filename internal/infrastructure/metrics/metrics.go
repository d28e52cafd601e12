// Package metrics exposes engine-level Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// PrometheusRecorder implements ports.MetricsRecorder on a Prometheus
// registry.
type PrometheusRecorder struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	runsInFlight    prometheus.Gauge
	itemsTotal      *prometheus.CounterVec
	rateLimiterWait prometheus.Histogram
}

var _ ports.MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the engine metrics with the given
// registerer, typically prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poslink_sync_runs_total",
			Help: "Completed sync runs by terminal status.",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "poslink_sync_run_duration_seconds",
			Help:    "Wall-clock duration of sync runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		runsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "poslink_sync_runs_in_flight",
			Help: "Sync runs currently executing.",
		}),
		itemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poslink_sync_items_total",
			Help: "Synced items by outcome.",
		}, []string{"outcome"}),
		rateLimiterWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "poslink_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate limiter permit.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// RunStarted marks one run in flight.
func (r *PrometheusRecorder) RunStarted() {
	r.runsInFlight.Inc()
}

// RunFinished records a terminal status and duration.
func (r *PrometheusRecorder) RunFinished(status string, seconds float64) {
	r.runsInFlight.Dec()
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(seconds)
}

// ItemsObserved records the per-outcome item counts of one run.
func (r *PrometheusRecorder) ItemsObserved(counts domain.SyncCounts) {
	r.itemsTotal.WithLabelValues(domain.ItemOutcomeCreated).Add(float64(counts.Created))
	r.itemsTotal.WithLabelValues(domain.ItemOutcomeUpdated).Add(float64(counts.Updated))
	r.itemsTotal.WithLabelValues(domain.ItemOutcomeSkipped).Add(float64(counts.Skipped))
	r.itemsTotal.WithLabelValues(domain.ItemOutcomeConflicted).Add(float64(counts.Conflicted))
	r.itemsTotal.WithLabelValues(domain.ItemOutcomeFailed).Add(float64(counts.Failed))
}

// RateLimiterWait records one permit wait.
func (r *PrometheusRecorder) RateLimiterWait(seconds float64) {
	r.rateLimiterWait.Observe(seconds)
}

// NopRecorder discards all observations, for tests.
type NopRecorder struct{}

var _ ports.MetricsRecorder = NopRecorder{}

func (NopRecorder) RunStarted()                           {}
func (NopRecorder) RunFinished(string, float64)           {}
func (NopRecorder) ItemsObserved(domain.SyncCounts)       {}
func (NopRecorder) RateLimiterWait(float64)               {}

// Package metrics defines the Prometheus collectors of apicsync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "apicsync"

// Metrics holds the collectors for ingestion runs.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	fetchFailures *prometheus.CounterVec
	emitted       *prometheus.CounterVec
	removed       *prometheus.CounterVec
	unresolved    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Number of ingestion runs.",
			},
			[]string{"provider", "result"}, // "success" or "error"
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of ingestion runs in seconds.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
			},
			[]string{"provider"},
		),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Number of failed resource fetches.",
			},
			[]string{"provider", "resource"},
		),
		emitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_emitted_total",
				Help:      "Number of entities emitted to the sink, by resource type.",
			},
			[]string{"provider", "type"},
		),
		removed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_removed_total",
				Help:      "Number of entity removals emitted to the sink.",
			},
			[]string{"provider"},
		),
		unresolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unresolved_references_total",
				Help:      "Number of references that could not be resolved and were dropped.",
			},
			[]string{"provider", "field"},
		),
	}
}

// MustRegister registers the metrics with the given Prometheus registry.
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(m.runs, m.runDuration, m.fetchFailures, m.emitted, m.removed, m.unresolved)
}

// ObserveRun records a completed ingestion run.
func (m *Metrics) ObserveRun(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(provider, result).Inc()
	m.runDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) FetchFailed(provider, resource string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(provider, resource).Inc()
}

func (m *Metrics) Emitted(provider, resourceType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.emitted.WithLabelValues(provider, resourceType).Add(float64(n))
}

func (m *Metrics) Removed(provider string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.removed.WithLabelValues(provider).Add(float64(n))
}

func (m *Metrics) UnresolvedDropped(provider, field string) {
	if m == nil {
		return
	}
	m.unresolved.WithLabelValues(provider, field).Inc()
}

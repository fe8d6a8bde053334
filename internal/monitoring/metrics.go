// Package monitoring exposes Prometheus metrics for layer fetches, snapshots
// and map sessions.
package monitoring

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bgindex"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeNoData  = "no_data"
	OutcomeMissing = "missing"
)

// Metrics holds the counters, histograms and gauges for the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	LayerFetches       *prometheus.CounterVec   // labels: metric, outcome={success,error,missing}
	LayerFetchDuration *prometheus.HistogramVec // labels: metric
	Snapshots          *prometheus.CounterVec   // labels: kind={single,compare}, outcome={success,no_data}
	StaleResults       prometheus.Counter
	ActiveSessions     prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LayerFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_fetches_total",
			Help:      "Index layer downloads by metric and outcome.",
		}, []string{"metric", "outcome"}),
		LayerFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layer_fetch_duration_seconds",
			Help:      "Time to download and decode one index layer.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"metric"}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot and comparison requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Session results discarded because inputs changed while loading.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Map sessions currently held in memory.",
		}),
	}

	reg.MustRegister(
		m.LayerFetches,
		m.LayerFetchDuration,
		m.Snapshots,
		m.StaleResults,
		m.ActiveSessions,
	)

	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveLayerFetch records one layer download. Errors reporting
// NotFound() count as missing layers rather than failures.
func (m *Metrics) ObserveLayerFetch(metric string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	var nf interface{ NotFound() bool }
	switch {
	case errors.As(err, &nf) && nf.NotFound():
		outcome = OutcomeMissing
	case err != nil:
		outcome = OutcomeError
	}
	m.LayerFetches.WithLabelValues(metric, outcome).Inc()
	m.LayerFetchDuration.WithLabelValues(metric).Observe(elapsed.Seconds())
}

// ObserveSnapshot records a finished snapshot or comparison.
func (m *Metrics) ObserveSnapshot(kind string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeNoData
	}
	m.Snapshots.WithLabelValues(kind, outcome).Inc()
}

// IncStale counts a discarded session result.
func (m *Metrics) IncStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

// SetSessions sets the active session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast service.
type Metrics struct {
	QueriesServed   *prometheus.CounterVec // labels: model, status={ok,bad_request,grid_miss,error}
	QueryDuration   prometheus.Histogram
	VariablesServed prometheus.Counter

	// Ingest metrics.
	IngestCycles        *prometheus.CounterVec // labels: model, outcome={success,error}
	IngestCycleDuration prometheus.Histogram
	IngestRunning       prometheus.Gauge
	FramesWritten       prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.QueriesServed,
		m.QueryDuration,
		m.VariablesServed,
		m.IngestCycles,
		m.IngestCycleDuration,
		m.IngestRunning,
		m.FramesWritten,
	)
	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		QueriesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast",
			Name:      "queries_total",
			Help:      "Point forecast queries by model and outcome.",
		}, []string{"model", "status"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forecast",
			Name:      "query_duration_seconds",
			Help:      "End-to-end forecast query duration.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		VariablesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast",
			Name:      "variables_served_total",
			Help:      "Variable series returned across all queries.",
		}),
		IngestCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast",
			Name:      "ingest_cycles_total",
			Help:      "Model ingest cycles by model and outcome.",
		}, []string{"model", "outcome"}),
		IngestCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forecast",
			Name:      "ingest_cycle_duration_seconds",
			Help:      "Duration of a complete fetch-write-publish ingest cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forecast",
			Name:      "ingest_running",
			Help:      "1 while an ingest cycle is running, 0 otherwise.",
		}),
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast",
			Name:      "frames_written_total",
			Help:      "Grid frames merged into the rolling archive.",
		}),
	}
}

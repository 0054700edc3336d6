// Package observability exposes Prometheus metrics for the collector
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "maiwar_wq"

// Run outcomes, used as the outcome label of RunOutcomes.
const (
	OutcomeUpdated   = "updated"
	OutcomeNoNewData = "no_new_data"
	OutcomeFailed    = "failed"
)

// Pipeline stages, used as the stage label of StageFailures.
const (
	StageFetch     = "fetch"
	StageTransform = "transform"
	StageEmpty     = "empty"
	StagePublished = "published"
	StageWrite     = "write"
	StageArchive   = "archive"
)

// Metrics holds the Prometheus counters, histograms, and gauges for collection runs.
type Metrics struct {
	RunsTotal      prometheus.Counter
	RunOutcomes    *prometheus.CounterVec // labels: outcome={updated,no_new_data,failed}
	StageFailures  *prometheus.CounterVec // labels: stage={fetch,transform,empty,published,write,archive}
	NotifyFailures prometheus.Counter
	RunDuration    prometheus.Histogram

	// Shape of the last transformed workbook.
	DatesCollected     prometheus.Gauge
	LocationsCollected prometheus.Gauge

	LastUpdate prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total collection runs started.",
		}),
		RunOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Collection runs by outcome.",
		}, []string{"outcome"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Failed collection runs by the stage that failed.",
		}, []string{"stage"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Notifications that could not be delivered.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete collection run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		DatesCollected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dates_collected",
			Help:      "Number of sampling dates in the last transformed workbook.",
		}),
		LocationsCollected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locations_collected",
			Help:      "Number of distinct locations in the last transformed workbook.",
		}),
		LastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last run that wrote new measurements.",
		}),
	}
}

// NewMetrics creates and registers all collector metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunOutcomes,
		m.StageFailures,
		m.NotifyFailures,
		m.RunDuration,
		m.DatesCollected,
		m.LocationsCollected,
		m.LastUpdate,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// every test can have its own set.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

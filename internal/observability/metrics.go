package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lake_evap"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// evaporation pipeline.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec // labels: status={success,error}
	RunDuration          prometheus.Histogram
	PipelineRunning      prometheus.Gauge
	LastSuccessTimestamp prometheus.Gauge

	// Per-location outcomes.
	LocationsProcessed *prometheus.CounterVec // labels: outcome={completed,skipped,failed}
	DroppedReadings    *prometheus.CounterVec // labels: kind
	Clamps             *prometheus.CounterVec // labels: clamp={sunshine_radiation,sunshine_cloud,rs_rso}

	// Raster fallback.
	RasterLookups  *prometheus.CounterVec // labels: model, outcome={resolved,no_match,no_data,error}
	CatalogueCache *prometheus.CounterVec // labels: result={hit,miss}

	// External collaborators.
	APIRequestDuration *prometheus.HistogramVec // labels: endpoint
	ResultsWritten     *prometheus.CounterVec   // labels: sink, outcome={success,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccessTimestamp,
		m.LocationsProcessed,
		m.DroppedReadings,
		m.Clamps,
		m.RasterLookups,
		m.CatalogueCache,
		m.APIRequestDuration,
		m.ResultsWritten,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Daily runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete daily run over all locations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed without a run-level error.",
		}),
		LocationsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_processed_total",
			Help:      "Location-days processed by outcome.",
		}, []string{"outcome"}),
		DroppedReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_readings_total",
			Help:      "Readings dropped for unsupported units, by parameter kind.",
		}, []string{"kind"}),
		Clamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clamps_total",
			Help:      "Times a physical bound corrected a computed value.",
		}, []string{"clamp"}),
		RasterLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raster_lookups_total",
			Help:      "Raster fallback attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		CatalogueCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raster_catalogue_cache_total",
			Help:      "Raster catalogue cache lookups by result.",
		}, []string{"result"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Portal API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		ResultsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_written_total",
			Help:      "Evaporation results handed to each sink, by outcome.",
		}, []string{"sink", "outcome"}),
	}
}

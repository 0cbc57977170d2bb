package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// resolver pipeline.
type Metrics struct {
	IncidentsConsumed  prometheus.Counter
	ResolutionsEmitted prometheus.Counter
	ResolveErrors      prometheus.Counter
	PipelineRunning    prometheus.Gauge

	// Resolution quality metrics.
	ResolvedByPrecision   *prometheus.CounterVec // label: level={specific,external_api,district,province,region,estimated,none}
	AmbiguousIncidents    prometheus.Counter
	OverridesApplied      prometheus.Counter
	CandidatesPerIncident prometheus.Histogram

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeCacheHits   prometheus.Counter
	GeocodeCacheMisses prometheus.Counter
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IncidentsConsumed,
		m.ResolutionsEmitted,
		m.ResolveErrors,
		m.PipelineRunning,
		m.ResolvedByPrecision,
		m.AmbiguousIncidents,
		m.OverridesApplied,
		m.CandidatesPerIncident,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
		m.GeocodeCacheHits,
		m.GeocodeCacheMisses,
		m.GeocodeEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IncidentsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "incidents_consumed_total",
			Help:      "Total incident records read from the source topic.",
		}),
		ResolutionsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "resolutions_emitted_total",
			Help:      "Total resolved locations written to the sink topic.",
		}),
		ResolveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "resolve_errors_total",
			Help:      "Total incidents that failed to persist or emit.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "incident_geo",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		ResolvedByPrecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "resolved_by_precision_total",
			Help:      "Resolutions by precision level.",
		}, []string{"level"}),
		AmbiguousIncidents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "ambiguous_incidents_total",
			Help:      "Incidents whose top two candidate scores were too close to call.",
		}),
		OverridesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "overrides_applied_total",
			Help:      "Resolutions corrected by a reviewed analyst override.",
		}),
		CandidatesPerIncident: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "incident_geo",
			Name:      "candidates_per_incident",
			Help:      "Gazetteer candidates matched per incident.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "incident_geo",
			Name:      "batch_size",
			Help:      "Number of incident records per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "incident_geo",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch score-resolve-persist cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "geocode_requests_total",
			Help:      "External geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "incident_geo",
			Name:      "geocode_api_duration_seconds",
			Help:      "Azure Maps request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "geocode_cache_hits_total",
			Help:      "Geocode lookups answered from the in-memory cache.",
		}),
		GeocodeCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_geo",
			Name:      "geocode_cache_misses_total",
			Help:      "Geocode lookups that fell through to the provider.",
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "incident_geo",
			Name:      "geocode_enabled",
			Help:      "1 when external geocoding is enabled, 0 otherwise.",
		}),
	}
}

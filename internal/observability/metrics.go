package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for one ETL run.
type Metrics struct {
	registry *prometheus.Registry

	CitiesRead     prometheus.Counter
	CitiesExported prometheus.Gauge
	CitiesSkipped  *prometheus.CounterVec // labels: stage={locate,fetch,convert}, reason
	RunDuration    prometheus.Gauge
	LastSuccess    prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: provider, outcome={success,error,not_found}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Climate normals metrics.
	NormalsRequests *prometheus.CounterVec // labels: outcome={success,no_station,incomplete_data,error}
	NormalsCache    *prometheus.CounterVec // labels: result={hit,miss}

	APIDuration *prometheus.HistogramVec // labels: service={nominatim,mapbox,meteostat}
}

// NewMetrics creates all run metrics on a fresh registry, so every run (and
// every test) starts from zero.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CitiesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "cities_read_total",
			Help:      "Cities read from the input list.",
		}),
		CitiesExported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_etl",
			Name:      "cities_exported",
			Help:      "Cities written to the exported artifacts in the last run.",
		}),
		CitiesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "cities_skipped_total",
			Help:      "Cities dropped from the output by stage and reason.",
		}, []string{"stage", "reason"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_etl",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote artifacts.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		NormalsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "normals_requests_total",
			Help:      "Climate normals lookups by outcome.",
		}, []string{"outcome"}),
		NormalsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "normals_cache_total",
			Help:      "Station normals cache lookups by result.",
		}, []string{"result"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "climate_etl",
			Name:      "api_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service"}),
	}

	m.registry.MustRegister(
		m.CitiesRead,
		m.CitiesExported,
		m.CitiesSkipped,
		m.RunDuration,
		m.LastSuccess,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.NormalsRequests,
		m.NormalsCache,
		m.APIDuration,
	)

	return m
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, for pickup by the node exporter textfile collector. The file is
// replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

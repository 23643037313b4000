package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// risk evaluation pipeline and the HTTP API.
type Metrics struct {
	EvalRuns       prometheus.Counter
	RegionFailures prometheus.Counter
	AlertsEmitted  *prometheus.CounterVec // labels: kind, severity
	EvalDuration   prometheus.Histogram

	// HTTP metrics.
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: method, route

	// Upstream metrics.
	WeatherFallbacks prometheus.Counter
	AirQualityMisses prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry under the given namespace (empty defaults to "climarisk").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "climarisk"
	}
	m := &Metrics{
		EvalRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_runs_total",
			Help:      "Total batch evaluation runs started.",
		}),
		RegionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_failures_total",
			Help:      "Total regions that failed evaluation within a run.",
		}),
		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_emitted_total",
			Help:      "Alerts written to the sink by index kind and severity.",
		}, []string{"kind", "severity"}),
		EvalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_duration_seconds",
			Help:      "Duration of a complete batch evaluation run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		WeatherFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fallbacks_total",
			Help:      "Weather fetches served by the secondary source.",
		}),
		AirQualityMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "air_quality_misses_total",
			Help:      "Air quality resolutions that degraded to no data.",
		}),
	}

	prometheus.MustRegister(
		m.EvalRuns,
		m.RegionFailures,
		m.AlertsEmitted,
		m.EvalDuration,
		m.HTTPRequests,
		m.HTTPDuration,
		m.WeatherFallbacks,
		m.AirQualityMisses,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EvalRuns:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climarisk", Name: "eval_runs_total"}),
		RegionFailures:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climarisk", Name: "region_failures_total"}),
		AlertsEmitted:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "climarisk", Name: "alerts_emitted_total"}, []string{"kind", "severity"}),
		EvalDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "climarisk", Name: "eval_duration_seconds"}),
		HTTPRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "climarisk", Name: "http_requests_total"}, []string{"method", "route", "status"}),
		HTTPDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "climarisk", Name: "http_request_duration_seconds"}, []string{"method", "route"}),
		WeatherFallbacks: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climarisk", Name: "weather_fallbacks_total"}),
		AirQualityMisses: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climarisk", Name: "air_quality_misses_total"}),
	}
}

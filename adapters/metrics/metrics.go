// Package metrics provides Prometheus metrics collection for fieldbase.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for fieldbase.
type Collector struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Composition engine metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	CompileFailures   prometheus.Counter
	AccessDenials     *prometheus.CounterVec

	// Schema registry cache metrics
	SchemaCacheHits   prometheus.Counter
	SchemaCacheMisses prometheus.Counter
}

// New creates a metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldbase",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fieldbase",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fieldbase",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		ExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldbase",
				Name:      "composition_executions_total",
				Help:      "Total composition executions by outcome",
			},
			[]string{"workspace", "composition", "status"},
		),
		ExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fieldbase",
				Name:      "composition_execution_duration_seconds",
				Help:      "Composition compile+execute duration in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"workspace", "composition"},
		),
		CompileFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fieldbase",
				Name:      "composition_compile_failures_total",
				Help:      "Total composition configs that failed compilation",
			},
		),
		AccessDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldbase",
				Name:      "composition_access_denials_total",
				Help:      "Public execution requests denied by the access gate",
			},
			[]string{"reason"},
		),

		SchemaCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fieldbase",
				Name:      "schema_cache_hits_total",
				Help:      "Schema registry cache hits",
			},
		),
		SchemaCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fieldbase",
				Name:      "schema_cache_misses_total",
				Help:      "Schema registry cache misses",
			},
		),
	}
}

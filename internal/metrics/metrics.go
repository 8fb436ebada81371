// Package metrics exposes Prometheus metrics for analysis cycles and the
// read API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application.
// A nil *Registry is valid and records nothing.
type Registry struct {
	// Cycle metrics
	CyclesTotal        *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	RisksDetected      prometheus.Gauge
	MaxSeverity        prometheus.Gauge
	WorstDelayDays     prometheus.Gauge
	OverallConfidence  prometheus.Gauge
	InvalidRecords     *prometheus.CounterVec
	SimulationFailures prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all metrics registered on a private
// Prometheus registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}
	r.initCycleMetrics()
	r.initHTTPMetrics()
	return r
}

func (r *Registry) initCycleMetrics() {
	r.CyclesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_cycles_total",
			Help: "Analysis cycles run, by status",
		},
		[]string{"status"},
	)

	r.CycleDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_cycle_duration_seconds",
			Help:    "Wall-clock duration of an analysis cycle",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	r.RisksDetected = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_risks_detected",
			Help: "Risks detected in the most recent cycle",
		},
	)

	r.MaxSeverity = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_max_severity",
			Help: "Highest risk score in the most recent cycle",
		},
	)

	r.WorstDelayDays = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_worst_delay_days",
			Help: "Worst simulated delay in the most recent cycle",
		},
	)

	r.OverallConfidence = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_overall_confidence",
			Help: "Overall decision confidence of the most recent cycle",
		},
	)

	r.InvalidRecords = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_invalid_records_total",
			Help: "Dropped input records, by kind",
		},
		[]string{"kind"},
	)

	r.SimulationFailures = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_simulation_failures_total",
			Help: "Risks whose simulation failed",
		},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "HTTP requests served, by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

// CycleObservation is what a finished cycle reports.
type CycleObservation struct {
	Status            string
	Duration          time.Duration
	Risks             int
	MaxSeverity       float64
	WorstDelayDays    float64
	OverallConfidence float64
}

// RecordCycle records a finished cycle.
func (r *Registry) RecordCycle(o CycleObservation) {
	if r == nil {
		return
	}
	r.CyclesTotal.WithLabelValues(o.Status).Inc()
	r.CycleDuration.Observe(o.Duration.Seconds())
	r.RisksDetected.Set(float64(o.Risks))
	r.MaxSeverity.Set(o.MaxSeverity)
	r.WorstDelayDays.Set(o.WorstDelayDays)
	r.OverallConfidence.Set(o.OverallConfidence)
}

// RecordInvalidRecords counts n dropped records of the given kind.
func (r *Registry) RecordInvalidRecords(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.InvalidRecords.WithLabelValues(kind).Add(float64(n))
}

// RecordSimulationFailures counts n failed simulations.
func (r *Registry) RecordSimulationFailures(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.SimulationFailures.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request with its duration.
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Gatherer returns the underlying Prometheus registry.
func (r *Registry) Gatherer() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

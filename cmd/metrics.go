package cmd

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// apiMetrics holds the Prometheus instruments for the HTTP server.
type apiMetrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  prometheus.Gauge
}

func newAPIMetrics() *apiMetrics {
	m := &apiMetrics{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engram_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engram_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "route"},
	)
	m.records = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engram_memory_records",
			Help: "Current number of memory records in the store",
		},
	)

	m.registry.MustRegister(m.requests)
	m.registry.MustRegister(m.duration)
	m.registry.MustRegister(m.records)
	return m
}

func (m *apiMetrics) recordRequest(method, route, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, status).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *apiMetrics) setRecordCount(n int) {
	m.records.Set(float64(n))
}

func (m *apiMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

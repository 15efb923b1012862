package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// API/HTTP subsystem metrics
var (
	// HTTPRequestDuration tracks HTTP request latency
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsTotal tracks total HTTP requests by handler, method, status
	HTTPRequestsTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests rejected by the per-client limiter
	RateLimitedTotal prometheus.Counter

	// WebSocketClients tracks connected state subscribers
	WebSocketClients prometheus.Gauge
)

// initAPIMetrics initializes all API subsystem metrics
func initAPIMetrics() {
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emptyfolder_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: APIBuckets,
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestsTotal = NewCounterVec(
		"emptyfolder_api_requests_total",
		"Total HTTP requests processed by the API.",
		[]string{"handler", "method", "status"},
	)

	RateLimitedTotal = NewCounter(
		"emptyfolder_api_rate_limited_total",
		"Total HTTP requests rejected by rate limiting.",
	)

	WebSocketClients = NewGauge(
		"emptyfolder_api_websocket_clients",
		"Number of connected WebSocket state subscribers.",
	)
}

// registerAPIMetrics registers all API metrics with Prometheus
func registerAPIMetrics() {
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(WebSocketClients)
}

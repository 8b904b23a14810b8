package middleware

import (
	"net/http"
	"time"

	"github.com/Harshitk-cp/beliefmarket/internal/metrics"
)

// MetricsCollector records request counts and latency in Prometheus.
type MetricsCollector struct {
	metrics *metrics.Metrics
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(m *metrics.Metrics) *MetricsCollector {
	return &MetricsCollector{metrics: m}
}

// Middleware returns middleware that counts requests by status and times them.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		mc.metrics.ObserveRequest(r.Method, rw.statusCode, time.Since(start))
	})
}

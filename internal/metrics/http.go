// Package metrics exposes the Prometheus collectors for the HTTP adapter,
// grounded on the teacher's pkg/metrics/prometheus package (promauto-registered
// CounterVec/HistogramVec against the default registerer).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nomad",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the upload-controller API, by route and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nomad",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds, by route and method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// ObserveHTTPRequest records one served request's outcome.
func ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler returns the promhttp handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

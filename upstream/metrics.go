package upstream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Upstream camera service requests by operation and response status.",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Upstream camera service round trip latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

func observe(operation, status string, elapsed time.Duration) {
	requestsTotal.WithLabelValues(operation, status).Inc()
	requestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

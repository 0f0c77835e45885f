package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docroute"

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Public API request latency by method, handler type and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Public API requests by method, handler type and status",
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently inside the dispatcher",
		},
	)
)

// RecordHTTPMetrics records one completed request. handler is the resolved
// handler type, or "" when no route matched, so label cardinality stays
// bounded by the route table.
func RecordHTTPMetrics(method, handler string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	httpRequestDuration.WithLabelValues(method, handler, code).Observe(duration.Seconds())
	httpRequestsTotal.WithLabelValues(method, handler, code).Inc()
}

func IncrementInFlight() { httpRequestsInFlight.Inc() }

func DecrementInFlight() { httpRequestsInFlight.Dec() }

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes.
const (
	OutcomeHandled    = "handled"
	OutcomePreflight  = "preflight"
	OutcomeNotFound   = "not_found"
	OutcomeConfigFail = "config_error"
)

var (
	dispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Requests by dispatch outcome",
		},
		[]string{"outcome"},
	)

	storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Document store operations by collection, operation and result",
		},
		[]string{"collection", "operation", "result"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Document store operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection", "operation"},
	)

	workerJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_jobs_total",
			Help:      "Background worker jobs by worker, stage and result",
		},
		[]string{"worker", "stage", "result"},
	)
)

// RecordDispatch counts one dispatch outcome.
func RecordDispatch(outcome string) {
	dispatchOutcomes.WithLabelValues(outcome).Inc()
}

// RecordStoreOperation counts one store call and observes its latency.
func RecordStoreOperation(collection, operation string, err error, duration time.Duration) {
	storeOperations.WithLabelValues(collection, operation, result(err)).Inc()
	storeOperationDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// RecordWorkerJob counts a worker being scheduled ("schedule") or run ("run").
func RecordWorkerJob(worker, stage string, err error) {
	workerJobs.WithLabelValues(worker, stage, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

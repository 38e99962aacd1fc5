package docstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for document store operations.
var (
	docstoreRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_requests_total",
		Help: "Total document store requests by collection and status",
	}, []string{"collection", "status"})

	docstoreRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docstore_request_duration_seconds",
		Help:    "Document store request duration in seconds by collection",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"collection"})

	docstoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_errors_total",
		Help: "Total document store errors by class",
	}, []string{"class"})

	docstoreRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	docstoreRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docstore_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	docstoreRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

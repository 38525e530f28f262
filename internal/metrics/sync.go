package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search engine and synchronization Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsync",
			Name:      "search_requests_total",
			Help:      "Total number of search engine request attempts",
		},
		[]string{"method", "outcome"}, // outcome: ok, transient, transport, invalid_response
	)

	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsync",
			Name:      "search_request_duration_seconds",
			Help:      "Search engine request duration in seconds, retries included",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	SearchRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsync",
			Name:      "search_retries_total",
			Help:      "Total number of retried search engine requests after a transient failure",
		},
		[]string{"method"},
	)

	IndexOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsync",
			Name:      "index_operations_total",
			Help:      "Single-document index and unindex operations",
		},
		[]string{"collection", "operation", "status"},
	)

	HookSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsync",
			Name:      "hook_suppressed_total",
			Help:      "Lifecycle hook invocations skipped because indexing could not be set up or panicked",
		},
		[]string{"collection", "event"},
	)

	ResyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsync",
			Name:      "resync_runs_total",
			Help:      "Bulk resynchronization runs by final state",
		},
		[]string{"collection", "status"},
	)

	ResyncDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsync",
			Name:      "resync_documents_total",
			Help:      "Documents bulk-loaded into new index generations",
		},
		[]string{"collection"},
	)
)

var syncMetricsRegistered bool

// RegisterSyncMetrics registers the search and synchronization metrics. Must be called once from main.
func RegisterSyncMetrics() {
	if syncMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchRequestDuration)
	prometheus.MustRegister(SearchRetriesTotal)
	prometheus.MustRegister(IndexOperationsTotal)
	prometheus.MustRegister(HookSuppressedTotal)
	prometheus.MustRegister(ResyncRunsTotal)
	prometheus.MustRegister(ResyncDocumentsTotal)
	syncMetricsRegistered = true
}

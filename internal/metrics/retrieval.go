package metrics

import "github.com/prometheus/client_golang/prometheus"

// Relevance scoring and retrieval Prometheus metrics.
var (
	ScorerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperrag",
			Name:      "scorer_requests_total",
			Help:      "Total number of relevance scorer calls",
		},
		[]string{"provider", "operation", "status"},
	)

	ScorerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paperrag",
			Name:      "scorer_request_duration_seconds",
			Help:      "Relevance scorer call duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	ScorerFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperrag",
			Name:      "scorer_fallback_total",
			Help:      "Calls served by the local scorer after a transient provider failure",
		},
		[]string{"reason"}, // "unavailable" / "timeout" / "circuit_open"
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paperrag",
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end duration of retrieval operations",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"}, // "retrieve" / "synthesize"
	)

	IndexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "paperrag",
			Name:      "index_entries",
			Help:      "Searchable entries in the published index generation",
		},
	)

	IngestItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperrag",
			Name:      "ingest_items_total",
			Help:      "Source items processed by ingestion",
		},
		[]string{"status"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers scorer, retrieval and index metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(ScorerRequestsTotal)
	prometheus.MustRegister(ScorerRequestDuration)
	prometheus.MustRegister(ScorerFallbackTotal)
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(IndexEntries)
	prometheus.MustRegister(IngestItemsTotal)
	retrievalMetricsRegistered = true
}

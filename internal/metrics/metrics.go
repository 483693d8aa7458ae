// Package metrics exposes Prometheus collectors for the HTTP API and its upstream services.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "nursesim"

// Upstream service labels.
const (
	ServiceLLM         = "llm"
	ServiceEmbedding   = "embedding"
	ServiceTranslation = "translation"
)

var (
	// UpstreamRequestsTotal counts calls to the LLM, embedding, and translation services.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream service requests",
		},
		[]string{"service", "model", "status"},
	)

	// UpstreamRequestDuration observes upstream latency.
	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream service request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "model"},
	)

	// UpstreamTokensTotal counts tokens reported by the OpenAI API.
	UpstreamTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_tokens_total",
			Help:      "Total tokens consumed by upstream model calls",
		},
		[]string{"service", "model", "type"},
	)

	// TranslationFallbacksTotal counts translations that returned the input unchanged.
	TranslationFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_fallbacks_total",
			Help:      "Translations that failed open and returned the original text",
		},
		[]string{"reason"},
	)

	// EmbeddingCacheTotal counts embedding cache hits and misses.
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	// SearchDuration observes end-to-end disease search latency.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Disease search duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"candidates"},
	)

	// IngestRecordsTotal counts disease records written by batch ingestion.
	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Disease records written by ingestion",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(UpstreamTokensTotal)
	prometheus.MustRegister(TranslationFallbacksTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(IngestRecordsTotal)
}

package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_documents_ingested_total",
			Help: "Total documents ingested",
		},
		[]string{"format", "status"},
	)

	DocumentsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_documents_deleted_total",
			Help: "Total documents deleted",
		},
	)

	ChunksProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_chunks_produced_total",
			Help: "Total chunks produced by ingestion",
		},
		[]string{"kind"},
	)

	RowsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_table_rows_skipped_total",
			Help: "Malformed table rows skipped during extraction",
		},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docchat_ingest_duration_seconds",
			Help:    "Ingestion duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"format"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_search_duration_seconds",
			Help:    "Lexical search duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_search_results_count",
			Help:    "Number of chunks returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 50},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_chat_total",
			Help: "Total chat requests",
		},
		[]string{"transport", "status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DocumentsIngested,
			DocumentsDeleted,
			ChunksProduced,
			RowsSkipped,
			IngestDuration,
			SearchDuration,
			SearchResultsCount,
			CacheHits,
			CacheMisses,
			ChatTotal,
			LLMTokensUsed,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_feed_fetches_total",
		Help: "The total number of feed fetch attempts by outcome",
	}, []string{"status"})

	FeedCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_feed_cache_lookups_total",
		Help: "Feed validation cache lookups by result",
	}, []string{"result"})

	ItemsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpulse_items_ingested_total",
		Help: "The total number of newly inserted items",
	})

	LabelsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_labels_processed_total",
		Help: "Items leaving the label processor by status",
	}, []string{"status"})

	SummariesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_summaries_processed_total",
		Help: "Items leaving the summary processor by status",
	}, []string{"status"})

	RetryResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_retry_resets_total",
		Help: "Error items reset to pending by the retry schedulers",
	}, []string{"processor"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedpulse_llm_request_duration_seconds",
		Help:    "Duration of completion API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	SummaryInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedpulse_summary_in_flight",
		Help: "Completion API calls currently in flight in the summary pool",
	})
)

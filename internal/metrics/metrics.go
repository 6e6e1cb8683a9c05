package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Translation metrics
var (
	// SubtitleTranslationsTotal counts translated subtitle files by status (success, failed).
	SubtitleTranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_translations_total",
			Help: "Total number of subtitle files processed.",
		},
		[]string{"status"},
	)

	// TranslationBatchesTotal counts batches by outcome (translated, cached, degraded).
	TranslationBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_batches_total",
			Help: "Total number of subtitle batches processed.",
		},
		[]string{"status"},
	)

	// RemoteCallsTotal counts generator calls by outcome (the apperrors kind, or success).
	RemoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_remote_calls_total",
			Help: "Total number of calls to the translation provider.",
		},
		[]string{"outcome"},
	)

	RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "translation_retries_total",
			Help: "Total number of retried translation calls.",
		},
	)

	DegradedBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "translation_degraded_blocks_total",
			Help: "Total number of subtitle blocks that kept their original text.",
		},
	)

	// JobDuration observes how long one subtitle file takes end to end.
	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "translation_job_duration_seconds",
			Help:    "Time spent translating one subtitle file.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// Broadcast metrics
var (
	BroadcastDroppedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_events_total",
			Help: "Total number of events dropped because a subscriber queue was full.",
		},
	)

	BroadcastSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_subscribers",
			Help: "Current number of event stream subscribers.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SubtitleTranslationsTotal,
		TranslationBatchesTotal,
		RemoteCallsTotal,
		RetriesTotal,
		DegradedBlocksTotal,
		JobDuration,
		BroadcastDroppedEventsTotal,
		BroadcastSubscribers,
	)
}

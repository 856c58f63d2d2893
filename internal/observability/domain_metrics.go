package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blueinsight_questions_total",
			Help: "Total number of processed questions by outcome.",
		},
		[]string{"outcome"},
	)
	questionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blueinsight_question_latency_ms",
			Help:    "End-to-end question processing latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
	)
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blueinsight_cache_lookups_total",
			Help: "Total number of answer cache lookups by result.",
		},
		[]string{"result"},
	)
	cacheSweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blueinsight_cache_sweeps_total",
			Help: "Total number of cache expiry sweeps.",
		},
	)
	cacheSweptEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blueinsight_cache_swept_entries_total",
			Help: "Total number of expired cache entries removed by sweeps.",
		},
	)
	completionFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blueinsight_completion_fallbacks_total",
			Help: "Total number of answers composed by the deterministic fallback.",
		},
	)
	datastoreRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blueinsight_datastore_retries_total",
			Help: "Total number of datastore query retry attempts.",
		},
	)
	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blueinsight_stream_events_total",
			Help: "Total number of streamed answer events by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		questionLatencyMs,
		cacheLookupsTotal,
		cacheSweepsTotal,
		cacheSweptEntriesTotal,
		completionFallbacksTotal,
		datastoreRetriesTotal,
		streamEventsTotal,
	)
}

func ObserveQuestion(outcome string, elapsed time.Duration) {
	questionsTotal.WithLabelValues(outcome).Inc()
	questionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

func ObserveCacheSweep(removed int) {
	cacheSweepsTotal.Inc()
	if removed > 0 {
		cacheSweptEntriesTotal.Add(float64(removed))
	}
}

func IncrementCompletionFallback() {
	completionFallbacksTotal.Inc()
}

func IncrementDatastoreRetry() {
	datastoreRetriesTotal.Inc()
}

func IncrementStreamEvent(kind string) {
	streamEventsTotal.WithLabelValues(kind).Inc()
}

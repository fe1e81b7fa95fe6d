// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// analysesTotal counts analysed queries.
	// Labels: language (en, ar), on_topic (true, false)
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carlton",
		Subsystem: "engine",
		Name:      "analyses_total",
		Help:      "Total analysed queries by language and topic outcome",
	}, []string{"language", "on_topic"})

	// redirectsTotal counts steer-back replies by how they were produced.
	redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carlton",
		Subsystem: "engine",
		Name:      "redirects_total",
		Help:      "Total off-topic redirects by method",
	}, []string{"method"})

	// generatorCallsTotal counts text generator attempts.
	// Labels: outcome (ok, error, timeout)
	generatorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carlton",
		Subsystem: "generator",
		Name:      "calls_total",
		Help:      "Text generator calls by outcome",
	}, []string{"outcome"})

	generatorLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carlton",
		Subsystem: "generator",
		Name:      "latency_seconds",
		Help:      "Text generator call latency",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	// upstreamFetchesTotal counts listings API fetches.
	// Labels: source (api, cache), outcome (ok, error)
	upstreamFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carlton",
		Subsystem: "upstream",
		Name:      "fetches_total",
		Help:      "Listings API fetches by source and outcome",
	}, []string{"source", "outcome"})

	chatLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "carlton",
		Subsystem: "chat",
		Name:      "turn_latency_seconds",
		Help:      "End-to-end latency of one chat turn",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})

	syncedListings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "carlton",
		Subsystem: "sync",
		Name:      "listings",
		Help:      "Listings written by the last successful sync",
	})
)

// RecordAnalysis records one analysed query.
func RecordAnalysis(language string, onTopic bool) {
	analysesTotal.WithLabelValues(language, boolLabel(onTopic)).Inc()
}

// RecordRedirect records one redirect reply.
func RecordRedirect(method string) {
	redirectsTotal.WithLabelValues(method).Inc()
}

// RecordGeneratorCall records a generator attempt and its latency.
func RecordGeneratorCall(outcome string, elapsed time.Duration) {
	generatorCallsTotal.WithLabelValues(outcome).Inc()
	generatorLatencySeconds.Observe(elapsed.Seconds())
}

// RecordUpstreamFetch records a listings lookup.
func RecordUpstreamFetch(source, outcome string) {
	upstreamFetchesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveChatTurn records a chat turn latency.
func ObserveChatTurn(responseType string, elapsed time.Duration) {
	chatLatencySeconds.WithLabelValues(responseType).Observe(elapsed.Seconds())
}

// SetSyncedListings records the size of the last sync.
func SetSyncedListings(n int) {
	syncedListings.Set(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

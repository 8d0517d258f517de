package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Query metrics
	QueryRequests prometheus.Counter
	QueryLatency  prometheus.Histogram
	QueryMatches  *prometheus.CounterVec
	QueryMisses   prometheus.Counter
	QueryErrors   *prometheus.CounterVec

	// Retrieval metrics
	FetchesByProvenance *prometheus.CounterVec
	CacheClears         prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		// Query requests counter
		QueryRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "answerhub_query_requests_total",
			Help: "Total number of query requests processed",
		}),

		// Query latency histogram
		QueryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "answerhub_query_duration_seconds",
			Help:    "Query latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		}),

		// Matches by strategy (embedding, ranker, keyword)
		QueryMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "answerhub_query_matches_total",
			Help: "Total number of matched queries by strategy",
		}, []string{"strategy"}),

		// Queries that cleared no threshold anywhere
		QueryMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "answerhub_query_misses_total",
			Help: "Total number of queries with no match above threshold",
		}),

		// Query errors by type
		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "answerhub_query_errors_total",
			Help: "Total number of query errors by type",
		}, []string{"error_type"}),

		// Entry set fetches by provenance tier
		FetchesByProvenance: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "answerhub_knowledge_fetches_total",
			Help: "Total number of knowledge fetches by provenance",
		}, []string{"provenance"}),

		// Explicit cache invalidations
		CacheClears: promauto.NewCounter(prometheus.CounterOpts{
			Name: "answerhub_cache_clears_total",
			Help: "Total number of explicit cache clears",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordQuery records one query request
func (m *Metrics) RecordQuery() {
	m.QueryRequests.Inc()
}

// RecordQueryLatency records query latency
func (m *Metrics) RecordQueryLatency(seconds float64) {
	m.QueryLatency.Observe(seconds)
}

// RecordMatch records a matched query by strategy
func (m *Metrics) RecordMatch(strategy string) {
	m.QueryMatches.WithLabelValues(strategy).Inc()
}

// RecordMiss records a query with no match
func (m *Metrics) RecordMiss() {
	m.QueryMisses.Inc()
}

// RecordQueryError records a query error by type
func (m *Metrics) RecordQueryError(errorType string) {
	m.QueryErrors.WithLabelValues(errorType).Inc()
}

// RecordFetch records a knowledge fetch by provenance
func (m *Metrics) RecordFetch(provenance string) {
	m.FetchesByProvenance.WithLabelValues(provenance).Inc()
}

// RecordCacheClear records an explicit cache clear
func (m *Metrics) RecordCacheClear() {
	m.CacheClears.Inc()
}

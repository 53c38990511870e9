// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of interaction store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of interaction store query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_open_connections",
			Help: "Current number of open store connections",
		},
	)

	// Popularity counter (Redis) metrics
	CounterOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularity_counter_operations_total",
			Help: "Total number of popularity counter operations",
		},
		[]string{"operation", "result"}, // result: "success", "miss", "error"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of answered recommendation requests by strategy",
		},
		[]string{"strategy"}, // "personalized", "popularity"
	)

	RecommendationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_fallbacks_total",
			Help: "Total number of popularity fallbacks by reason",
		},
		[]string{"reason"}, // "no_profile", "model_unavailable", "timeout"
	)

	RecommendationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_errors_total",
			Help: "Total number of failed recommendation requests",
		},
		[]string{"error_type"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy"},
	)

	RecommendationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates",
			Help:    "Number of eligible candidate stories per request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// Embedding Provider Metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_requests_total",
			Help: "Total number of embedding model calls",
		},
		[]string{"backend", "status"}, // status: "success", "unavailable", "error"
	)

	EmbeddingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedding_duration_seconds",
			Help:    "Embedding model call latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Content Safety Metrics
	SafetyVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_verdicts_total",
			Help: "Total number of content safety verdicts",
		},
		[]string{"backend", "result"}, // result: "acceptable", "rejected", "error"
	)

	SafetyFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_flags_total",
			Help: "Total number of flagged categories",
		},
		[]string{"category"},
	)

	// Indexer Metrics
	IndexerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_runs_total",
			Help: "Total number of embedding indexer runs",
		},
		[]string{"trigger", "status"}, // trigger: "reindex", "backfill"
	)

	IndexerStoriesEmbedded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_stories_embedded_total",
			Help: "Total number of story embeddings written",
		},
	)

	IndexerLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_last_success_timestamp",
			Help: "Unix timestamp of the last successful backfill",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a store query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, ErrorType(err)).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation records an answered recommendation request.
// reason is empty for the personalized path.
func RecordRecommendation(strategy, reason string, candidates int, duration time.Duration) {
	RecommendationRequests.WithLabelValues(strategy).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	RecommendationCandidates.Observe(float64(candidates))
	if reason != "" {
		RecommendationFallbacks.WithLabelValues(reason).Inc()
	}
}

// RecordRecommendationError records a failed recommendation request.
func RecordRecommendationError(err error) {
	RecommendationErrors.WithLabelValues(ErrorType(err)).Inc()
}

// RecordEmbedding records an embedding model call.
func RecordEmbedding(backend, status string, duration time.Duration) {
	EmbeddingRequests.WithLabelValues(backend, status).Inc()
	EmbeddingDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
	} else {
		CacheMisses.WithLabelValues(cache).Inc()
	}
}

// RecordSafetyVerdict records a classifier verdict and its flagged categories.
func RecordSafetyVerdict(backend string, acceptable bool, flags []string) {
	result := "acceptable"
	if !acceptable {
		result = "rejected"
	}
	SafetyVerdicts.WithLabelValues(backend, result).Inc()
	for _, f := range flags {
		SafetyFlags.WithLabelValues(f).Inc()
	}
}

// RecordIndexerRun records an indexer run.
func RecordIndexerRun(trigger string, embedded int, err error) {
	IndexerStoriesEmbedded.Add(float64(embedded))
	if err != nil {
		IndexerRuns.WithLabelValues(trigger, "error").Inc()
		return
	}
	IndexerRuns.WithLabelValues(trigger, "success").Inc()
	if trigger == "backfill" {
		IndexerLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// ErrorType maps an error to a bounded label value.
func ErrorType(err error) string {
	if err == nil {
		return "none"
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid argument"):
		return "invalid_argument"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "unavailable"):
		return "unavailable"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "other"
	}
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

/*
Package metrics provides Prometheus metrics for the recommendation service.

All collectors are registered on the default registry through promauto and
exposed by the HTTP server at /metrics.

# Available Metrics

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limited requests (counter)

Recommendation Metrics:
  - recommendation_requests_total: Answered requests (counter)
    Labels: strategy (personalized, popularity)
  - recommendation_fallbacks_total: Popularity fallbacks (counter)
    Labels: reason (no_profile, model_unavailable, timeout)
  - recommendation_errors_total: Failed requests (counter)
  - recommendation_duration_seconds: End-to-end latency (histogram)
  - recommendation_candidates: Eligible candidates per request (histogram)

Embedding Metrics:
  - embedding_requests_total: Model calls (counter)
    Labels: backend, status
  - embedding_duration_seconds: Model call latency (histogram)
  - cache_hits_total / cache_misses_total: Embedding cache lookups
    Labels: cache (memory, disk)

Store Metrics:
  - store_query_duration_seconds: Query time (histogram)
    Labels: operation, table
  - store_query_errors_total: Failed queries (counter)
  - popularity_counter_operations_total: Redis counter operations (counter)

Circuit Breaker Metrics:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total: Requests by result (counter)
  - circuit_breaker_consecutive_failures: Consecutive failures (gauge)
  - circuit_breaker_state_transitions_total: Transitions (counter)

Safety and Indexer Metrics:
  - safety_verdicts_total, safety_flags_total
  - indexer_runs_total, indexer_stories_embedded_total,
    indexer_last_success_timestamp

# Usage

	start := time.Now()
	resp, err := engine.Recommend(ctx, req)
	metrics.RecordDBQuery("read_history", "read_events", time.Since(start), err)
*/
package metrics

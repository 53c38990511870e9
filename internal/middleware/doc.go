// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

/*
Package middleware provides HTTP middleware for the API router.

  - RequestID: assigns or propagates X-Request-ID and a correlation ID
  - AccessLog: request-scoped zerolog logger and one log line per request
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern

All middleware use the func(http.Handler) http.Handler shape so they compose
with chi's Use.

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger, time.Second))
	r.Use(middleware.PrometheusMetrics)
*/
package middleware

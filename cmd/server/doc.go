// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package main is the Stellar Spire HTTP server.
//
// Startup order:
//
//  1. Configuration: defaults, config.yaml, .env and environment (koanf v2)
//  2. Logging: zerolog, JSON or console
//  3. Components: SQL store, Redis counters (optional), embedding provider,
//     safety classifier (optional), recommendation engine, indexer
//  4. HTTP API: chi router with CORS, rate limiting and Prometheus metrics
//  5. Supervisor tree: HTTP server, popularity warm-up, embedding backfill
//
// SIGINT and SIGTERM cancel the tree; the HTTP server drains for
// server.shutdown_timeout before components are closed.
//
// Minimal local run against a TEI or vLLM embedding server:
//
//	export EMBEDDING_BASE_URL=http://localhost:8080/v1
//	export STORE_DSN=data/stellar-spire.duckdb
//	./stellar-spire
//
// PostgreSQL with pgvector and Redis counters:
//
//	export STORE_DRIVER=postgres
//	export DATABASE_URL=postgres://spire:secret@db/spire?sslmode=disable
//	export REDIS_ENABLED=true
//	export REDIS_ADDR=redis:6379
//	./stellar-spire
package main

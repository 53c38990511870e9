// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

//go:build integration

// Package testinfra starts throwaway PostgreSQL (pgvector), MySQL and Redis
// containers for integration tests using testcontainers-go.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/store/...
//
// Tests skip when Docker is unavailable.
//
//	func TestPostgres(t *testing.T) {
//	    dsn := testinfra.StartPostgres(t)
//	    store, err := sqlstore.Open(ctx, &sqlstore.Config{Driver: "postgres", DSN: dsn, ...}, logger)
//	    ...
//	}
package testinfra

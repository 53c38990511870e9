// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

/*
Package sqlstore implements the interaction store on database/sql.

Supported drivers:
  - duckdb: embedded DuckDB file (default)
  - postgres: lib/pq with a pgvector vector(D) column, traced with otelsql
  - sqlite: pure-Go modernc.org/sqlite file
  - mysql: go-sql-driver/mysql, traced with otelsql

Tables:
  - stories: story metadata, likes counter and content embedding
  - chapters: chapter contents used to build the embedding text
  - read_events: append-only read log
  - story_likes: one row per (user, story) like
  - user_similarities: precomputed reader similarity pairs (read-only here)

Outside PostgreSQL, embeddings are stored as JSON text. Vectors whose length
differs from the configured dimensions are treated as missing.

Every operation records store_query_duration_seconds and wraps failures
as recommend.ErrStoreUnavailable, except not-found and invalid-argument
conditions which keep their own sentinel.
*/
package sqlstore

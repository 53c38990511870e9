// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

/*
Package indexer maintains story content embeddings.

Reindex builds the embedding text for one story (all chapter contents in
order, joined with a single space), optionally passes it through the content
safety gate, embeds it and writes it back with UpdateEmbedding. Backfill does
the same for every story that has no embedding yet and is run on a schedule
by the supervisor.
*/
package indexer

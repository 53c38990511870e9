// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package app wires configuration into running components: the SQL store,
// the optional Redis counters, the embedding provider, the optional safety
// classifier, the recommendation engine and the indexer. Both cmd/server
// and cmd/spirectl start from Open.
package app

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package cache provides an in-memory LRU cache with TTL and a stable key
// helper. It is the first-level memo in front of the embedding provider.
package cache

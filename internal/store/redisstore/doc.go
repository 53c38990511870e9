// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package redisstore keeps story popularity counters in Redis sorted sets
// (one per popularity source) in front of the SQL interaction store.
package redisstore

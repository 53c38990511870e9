// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package reranking implements diversity re-ranking of scored candidates.
//
// Rerankers run after scoring and before hydration:
//
//	Scorer -> sort -> cap -> Diversifier -> hydrate
//
// # Available Diversifiers
//
// MaxMin (default):
//   - Always keeps the top-scored story
//   - Then repeatedly picks the story farthest from everything already picked
//   - Distance is 1 - cosine of the story embeddings
//
// MMR:
//   - Trades relevance against similarity with a lambda parameter
//   - lambda = 1 keeps the score order
//
// Both implement recommend.Diversifier and never modify their input.
package reranking

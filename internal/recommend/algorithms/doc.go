// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package algorithms implements the affinity models and the blend scorer
// used by the recommendation engine.
//
// # Affinity Models
//
// An affinity model is fitted once per request and answers "how close is this
// story to the reader's taste":
//
//   - ContentModel: cosine between the reader's decayed profile and the story
//     embedding. Stories without an embedding are not scored.
//   - CollaborativeModel: normalized vote of the reader's nearest neighbours
//     from the precomputed similarity table. Embeddings are not required.
//
// # Profile
//
// ProfileBuilder averages history embeddings with weight exp(-ageDays/30).
// A read 30 days old weighs about 0.37 of a read made today.
//
// # Scoring
//
// BlendScorer combines the affinity with popularity:
//
//	score = 0.7 * similarity + 0.3 * count/100
//
// # Thread Safety
//
// Models are stateless between requests; fitted affinities are read-only.
// All types are safe for concurrent use.
package algorithms

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package recommend implements content-based story recommendation.
//
// # Architecture
//
// A request flows through four stages:
//
//   - Profile: the reader's history embeddings are averaged with weight
//     exp(-ageDays/30), so recent reads dominate
//   - Scoring: every story the reader has not read is scored as
//     0.7*cosine(profile, story) + 0.3*counter/100
//   - Diversity: the score-sorted pool, capped at Config.MaxCandidates, is
//     re-ranked greedily to maximize the minimum pairwise distance
//   - Hydration: full story records are loaded and returned in rank order
//
// The stages are pluggable through AffinityModel, Scorer and Diversifier.
// Implementations live in the algorithms and reranking subpackages.
//
// # Fallbacks
//
// The personalized path runs under Config.Timeout. The engine answers with
// popularity-only ranking when the reader has no usable history, when the
// embedding model stays unavailable after a single retry, or when the
// timeout expires. Store failures are never masked.
//
// # Usage
//
//	cfg := recommend.DefaultConfig()
//	engine, err := recommend.NewEngine(cfg, store, logger,
//	    recommend.WithAffinityModel(algorithms.NewContentModel(cfg.Dimensions, logger)),
//	    recommend.WithScorer(algorithms.NewBlendScorer()),
//	    recommend.WithDiversifier(reranking.NewMaxMin()),
//	)
//
//	resp, err := engine.Recommend(ctx, recommend.Request{
//	    UserID: userID,
//	    K:      10,
//	})
//
// # Thread Safety
//
// The engine keeps no per-request state and is safe for concurrent use.
package recommend

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package algorithms

import (
	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// BlendScorer combines affinity and popularity:
//
//	score = 0.7 * similarity + 0.3 * count/100
//
// The weights and divisor are fixed by recommend.SimilarityWeight,
// recommend.PopularityWeight and recommend.PopularityDivisor.
type BlendScorer struct{}

// NewBlendScorer creates the blend scorer.
func NewBlendScorer() *BlendScorer {
	return &BlendScorer{}
}

// Score fills Similarity, Popularity and Score for every candidate the
// affinity can score. Candidates it cannot score are dropped. The input
// slice is not modified and the result is unsorted.
func (s *BlendScorer) Score(aff recommend.Affinity, candidates []recommend.Candidate, popularity map[string]int64) []recommend.Candidate {
	scored := make([]recommend.Candidate, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		sim, ok := aff.Similarity(&c)
		if !ok {
			continue
		}
		c.Similarity = sim
		c.Popularity = PopularityScore(popularity[c.StoryID])
		c.Score = recommend.SimilarityWeight*c.Similarity + recommend.PopularityWeight*c.Popularity
		scored = append(scored, c)
	}
	return scored
}

// PopularityScore normalizes a raw counter. Values are not clamped, so a
// story with more than 100 reads scores above 1.
func PopularityScore(count int64) float64 {
	return float64(count) / recommend.PopularityDivisor
}

// Ensure models implement the engine interfaces.
var (
	_ recommend.Scorer        = (*BlendScorer)(nil)
	_ recommend.AffinityModel = (*ContentModel)(nil)
	_ recommend.AffinityModel = (*CollaborativeModel)(nil)
)

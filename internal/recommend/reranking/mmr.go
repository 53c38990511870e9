// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package reranking

import (
	"context"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/recommend/algorithms"
)

// MMR implements Maximal Marginal Relevance reranking over story embeddings.
// It balances relevance and diversity by iteratively selecting stories
// that are both relevant and dissimilar to already selected stories.
//
// The MMR formula is:
//
//	MMR = argmax[lambda * score(i) - (1-lambda) * max(cos(i, s)) for s in selected]
//
// Stories without an embedding have similarity 0 to everything.
//
// Reference:
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type MMR struct {
	// Lambda balances relevance vs. diversity (0.0 to 1.0)
	lambda float64
}

// NewMMR creates a new MMR reranker.
func NewMMR(lambda float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda}
}

// Name returns the diversifier identifier.
func (m *MMR) Name() string {
	return "mmr"
}

// Diversify applies MMR to the score-sorted candidates and keeps k.
func (m *MMR) Diversify(_ context.Context, ranked []recommend.Candidate, k int) []recommend.Candidate {
	if len(ranked) == 0 || k <= 0 {
		return []recommend.Candidate{}
	}
	if k > len(ranked) {
		k = len(ranked)
	}

	// Pure relevance keeps the input order.
	if m.lambda >= 1.0 {
		out := make([]recommend.Candidate, k)
		copy(out, ranked[:k])
		return out
	}

	// maxSim[i] is the highest similarity of i to any selected story.
	maxSim := make([]float64, len(ranked))
	chosen := make([]bool, len(ranked))
	selected := make([]recommend.Candidate, 0, k)

	for len(selected) < k {
		bestIdx := -1
		var bestMMR float64

		for i := range ranked {
			if chosen[i] {
				continue
			}
			mmrScore := m.lambda*ranked[i].Score - (1-m.lambda)*maxSim[i]
			if bestIdx < 0 || mmrScore > bestMMR {
				bestMMR = mmrScore
				bestIdx = i
			}
		}

		chosen[bestIdx] = true
		picked := ranked[bestIdx]
		selected = append(selected, picked)

		for i := range ranked {
			if chosen[i] || ranked[i].Embedding == nil || picked.Embedding == nil {
				continue
			}
			if sim := algorithms.Cosine(ranked[i].Embedding, picked.Embedding); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	return selected
}

// Ensure MMR implements the interface.
var _ recommend.Diversifier = (*MMR)(nil)

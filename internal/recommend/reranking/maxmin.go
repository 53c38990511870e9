// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package reranking

import (
	"context"
	"math"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/recommend/algorithms"
)

// maxDistance is the distance assigned to pairs where either side has no
// embedding. It is the upper bound of 1 - cosine.
const maxDistance = 2.0

// MaxMin implements greedy max-min diversity selection.
//
// The highest-scored candidate is always selected first. Each following
// step selects the candidate whose minimum distance to the already-selected
// set is largest:
//
//	next = argmax_i min_{s in selected} (1 - cos(e_i, e_s))
//
// Ties go to the earlier (higher-scored) candidate. A running min-distance
// array keeps the cost at O(k*n).
type MaxMin struct{}

// NewMaxMin creates a max-min diversifier.
func NewMaxMin() *MaxMin {
	return &MaxMin{}
}

// Name returns the diversifier identifier.
func (m *MaxMin) Name() string {
	return "maxmin"
}

// Diversify selects up to k candidates from ranked, which must be sorted by
// score descending then story ID ascending. The input is not modified.
func (m *MaxMin) Diversify(_ context.Context, ranked []recommend.Candidate, k int) []recommend.Candidate {
	n := len(ranked)
	if k <= 0 || n == 0 {
		return []recommend.Candidate{}
	}
	if k > n {
		k = n
	}

	minDist := make([]float64, n)
	for i := range minDist {
		minDist[i] = math.Inf(1)
	}
	chosen := make([]bool, n)

	selected := make([]recommend.Candidate, 0, k)
	next := 0
	for {
		chosen[next] = true
		selected = append(selected, ranked[next])
		if len(selected) == k {
			break
		}

		last := ranked[next].Embedding
		next = -1
		best := math.Inf(-1)
		for i := range ranked {
			if chosen[i] {
				continue
			}
			if d := distance(ranked[i].Embedding, last); d < minDist[i] {
				minDist[i] = d
			}
			if minDist[i] > best {
				best = minDist[i]
				next = i
			}
		}
	}

	return selected
}

// distance returns 1 - cosine, or maxDistance when either embedding is missing.
func distance(a, b []float32) float64 {
	if a == nil || b == nil {
		return maxDistance
	}
	return 1 - algorithms.Cosine(a, b)
}

// Ensure MaxMin implements the interface.
var _ recommend.Diversifier = (*MaxMin)(nil)

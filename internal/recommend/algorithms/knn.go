// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package algorithms

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// CollaborativeModel is a user-based nearest-neighbour affinity model built on
// the precomputed reader similarity table.
//
// For a candidate story s and neighbours v of reader u:
//
//	similarity(s) = sum(sim(u,v) for v who read s) / sum(|sim(u,v)|)
//
// The result lies in [-1, 1]. Stories no neighbour has read score 0.
// Embeddings are not required.
type CollaborativeModel struct {
	store         recommend.SimilarityStore
	neighbours    int
	maxConcurrent int
	logger        zerolog.Logger
}

// NewCollaborativeModel creates a collaborative affinity model.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewCollaborativeModel(store recommend.SimilarityStore, cfg recommend.CollaborativeConfig, logger zerolog.Logger) *CollaborativeModel {
	if cfg.Neighbours <= 0 {
		cfg.Neighbours = 50
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	return &CollaborativeModel{
		store:         store,
		neighbours:    cfg.Neighbours,
		maxConcurrent: cfg.MaxConcurrent,
		logger:        logger.With().Str("component", "collaborative").Logger(),
	}
}

// Name returns the model identifier.
func (m *CollaborativeModel) Name() string {
	return "collaborative"
}

// Fit loads the reader's neighbours and the stories each of them has read.
// ok is false when the reader has no neighbours with non-zero similarity.
//
//nolint:gocritic // hugeParam: in passed by value per interface contract
func (m *CollaborativeModel) Fit(ctx context.Context, in recommend.AffinityInput) (recommend.Affinity, bool, error) {
	neighbours, err := m.store.SimilarUsers(ctx, in.UserID, m.neighbours)
	if err != nil {
		return nil, false, recommend.StoreError("load similar users", err)
	}

	var norm float64
	usable := neighbours[:0:0]
	for _, n := range neighbours {
		if n.UserID == in.UserID || n.Score == 0 || math.IsNaN(n.Score) {
			continue
		}
		norm += math.Abs(n.Score)
		usable = append(usable, n)
	}
	if norm == 0 {
		return nil, false, nil
	}

	votes := make(map[string]float64)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxConcurrent)
	for _, n := range usable {
		g.Go(func() error {
			ids, err := m.store.ReadStoryIDs(gctx, n.UserID)
			if err != nil {
				return recommend.StoreError(fmt.Sprintf("load reads of neighbour %s", n.UserID), err)
			}
			mu.Lock()
			for _, id := range ids {
				votes[id] += n.Score
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	m.logger.Debug().
		Str("user_id", in.UserID).
		Int("neighbours", len(usable)).
		Int("voted_stories", len(votes)).
		Msg("fitted collaborative affinity")

	return &voteAffinity{votes: votes, norm: norm}, true, nil
}

// voteAffinity is a fitted collaborative model.
type voteAffinity struct {
	votes map[string]float64
	norm  float64
}

// Similarity returns the normalized neighbour vote for the candidate.
func (a *voteAffinity) Similarity(c *recommend.Candidate) (float64, bool) {
	return a.votes[c.StoryID] / a.norm, true
}

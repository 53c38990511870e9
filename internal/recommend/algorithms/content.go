// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package algorithms

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// ContentModel scores candidates by cosine similarity between the reader's
// decayed profile and each story embedding.
//
// This is the default affinity model. It needs nothing beyond the reader's
// own history and the story embeddings, so it also serves brand-new stories.
type ContentModel struct {
	builder *ProfileBuilder
}

// NewContentModel creates a content affinity model.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewContentModel(dimensions int, logger zerolog.Logger) *ContentModel {
	return &ContentModel{builder: NewProfileBuilder(dimensions, logger)}
}

// Name returns the model identifier.
func (m *ContentModel) Name() string {
	return "content"
}

// Fit builds the profile for one request.
//
//nolint:gocritic // hugeParam: in passed by value per interface contract
func (m *ContentModel) Fit(ctx context.Context, in recommend.AffinityInput) (recommend.Affinity, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	profile, ok := m.builder.Build(in.History, in.Now)
	if !ok {
		return nil, false, nil
	}
	return &profileAffinity{profile: profile}, true, nil
}

// profileAffinity is a fitted content model.
type profileAffinity struct {
	profile recommend.Profile
}

// Similarity returns the cosine between the profile and the candidate.
// Candidates without an embedding cannot be scored.
func (a *profileAffinity) Similarity(c *recommend.Candidate) (float64, bool) {
	if c.Embedding == nil {
		return 0, false
	}
	return cosineSimilarity(a.profile.Vector, c.Embedding), true
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package algorithms

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// ProfileBuilder aggregates a reader's history into a single taste vector.
//
// Each history embedding contributes with weight exp(-ageDays/30):
//
//	profile = sum(w_i * e_i) / sum(w_i)
//
// Reads stamped in the future weigh more than one. Entries without a
// valid embedding are skipped with a warning.
type ProfileBuilder struct {
	dimensions int
	decayDays  float64
	logger     zerolog.Logger
}

// NewProfileBuilder creates a profile builder for embeddings of the given length.
//
//nolint:gocritic // hugeParam: logger passed by value is acceptable for zerolog
func NewProfileBuilder(dimensions int, logger zerolog.Logger) *ProfileBuilder {
	return &ProfileBuilder{
		dimensions: dimensions,
		decayDays:  recommend.DecayDays,
		logger:     logger.With().Str("component", "profile").Logger(),
	}
}

// Weight returns the decay weight for a read at readAt observed at now.
func (p *ProfileBuilder) Weight(readAt, now time.Time) float64 {
	ageDays := now.Sub(readAt).Hours() / 24
	return math.Exp(-ageDays / p.decayDays)
}

// Build computes the profile. ok is false when no entry carries a usable
// embedding or the accumulated weight is zero or infinite.
func (p *ProfileBuilder) Build(history []recommend.HistoryEntry, now time.Time) (recommend.Profile, bool) {
	var (
		sum         []float64
		totalWeight float64
		missing     int
		invalid     int
	)

	for i := range history {
		emb := history[i].Embedding
		if emb == nil {
			missing++
			continue
		}
		if !validEmbedding(emb, p.dimensions) {
			invalid++
			continue
		}
		if sum == nil {
			sum = make([]float64, len(emb))
		}

		w := p.Weight(history[i].ReadAt, now)
		for j, x := range emb {
			sum[j] += w * float64(x)
		}
		totalWeight += w
	}

	if missing > 0 || invalid > 0 {
		p.logger.Warn().
			Int("missing", missing).
			Int("invalid", invalid).
			Int("history", len(history)).
			Msg("skipped history entries without usable embeddings")
	}

	if sum == nil || totalWeight == 0 || math.IsInf(totalWeight, 0) {
		return recommend.Profile{}, false
	}

	for j := range sum {
		sum[j] /= totalWeight
	}

	return recommend.Profile{Vector: sum, TotalWeight: totalWeight}, true
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Warmer rebuilds cached popularity counters from the store of record.
// Satisfied by *redisstore.PopularityStore.
type Warmer interface {
	Warm(ctx context.Context) error
	Warmed() bool
}

// PopularityWarmService seeds the Redis counters on startup and re-seeds them
// after the store drops out of warm mode, which happens when a counter update
// fails.
type PopularityWarmService struct {
	warmer   Warmer
	interval time.Duration
	logger   zerolog.Logger
}

// NewPopularityWarmService creates the service. A non-positive interval
// means one minute.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPopularityWarmService(warmer Warmer, interval time.Duration, logger zerolog.Logger) *PopularityWarmService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PopularityWarmService{
		warmer:   warmer,
		interval: interval,
		logger:   logger.With().Str("service", "popularity-warm").Logger(),
	}
}

// Serve implements suture.Service.
func (s *PopularityWarmService) Serve(ctx context.Context) error {
	s.check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *PopularityWarmService) check(ctx context.Context) {
	if s.warmer.Warmed() {
		return
	}
	start := time.Now()
	if err := s.warmer.Warm(ctx); err != nil {
		// Reads fall back to SQL until the next attempt succeeds.
		s.logger.Warn().Err(err).Msg("Popularity counter warm-up failed")
		return
	}
	s.logger.Info().Dur("duration", time.Since(start)).Msg("Popularity counters warmed")
}

// String identifies the service in supervisor logs.
func (s *PopularityWarmService) String() string {
	return "popularity-warm"
}

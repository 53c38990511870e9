// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/indexer"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/safety"
)

// Recommender is implemented by *recommend.Engine.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error)
	Popular(ctx context.Context, k int, source recommend.PopularitySource) ([]recommend.Recommendation, error)
}

// InteractionWriter records reader interactions.
type InteractionWriter interface {
	RecordRead(ctx context.Context, ev recommend.ReadEvent) error
	ToggleLike(ctx context.Context, userID, storyID string) (liked bool, count int64, err error)
}

// Reindexer refreshes a single story embedding.
type Reindexer interface {
	Reindex(ctx context.Context, storyID string) (*indexer.Result, error)
}

// Classifier scores text against the content policy.
type Classifier interface {
	Classify(ctx context.Context, text string) (safety.Verdict, error)
}

// HealthCheck is one readiness dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the collaborators behind the HTTP surface. Indexer and
// Classifier are optional; their endpoints answer 503 NOT_CONFIGURED when nil.
type Dependencies struct {
	Recommender  Recommender
	Interactions InteractionWriter
	Indexer      Reindexer
	Classifier   Classifier
	Checks       []HealthCheck
}

// Handler implements the API endpoints.
type Handler struct {
	deps      Dependencies
	cfg       Config
	logger    zerolog.Logger
	startTime time.Time
	now       func() time.Time
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func newHandler(deps Dependencies, cfg Config, logger zerolog.Logger) *Handler {
	return &Handler{
		deps:      deps,
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}
}

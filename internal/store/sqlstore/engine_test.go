// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/recommend/algorithms"
	"github.com/carlulsoe/stellar-spire/internal/recommend/reranking"
)

func TestEngineOverSQLite(t *testing.T) {
	s := openTestStore(t)
	insertStory(t, s, "h", 0, "[1,0]")
	insertStory(t, s, "A", 0, "[1,0]")
	insertStory(t, s, "B", 0, "[0.99,0.14]")
	insertStory(t, s, "C", 0, "[0,1]")
	insertRead(t, s, "reader", "h", epoch.Add(-24*time.Hour))

	cfg := recommend.DefaultConfig()
	cfg.Dimensions = 2
	engine, err := recommend.NewEngine(cfg, s, zerolog.Nop(),
		recommend.WithAffinityModel(algorithms.NewContentModel(cfg.Dimensions, zerolog.Nop())),
		recommend.WithScorer(algorithms.NewBlendScorer()),
		recommend.WithDiversifier(reranking.NewMaxMin()),
		recommend.WithClock(func() time.Time { return epoch }),
	)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := engine.Recommend(context.Background(), recommend.Request{UserID: "reader", K: 2})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if got := fmt.Sprint(resp.StoryIDs()); got != "[A C]" {
		t.Errorf("StoryIDs() = %s, want [A C]", got)
	}
	if resp.Items[0].Title != "Title A" {
		t.Errorf("hydrated title = %q", resp.Items[0].Title)
	}

	resp, err = engine.Recommend(context.Background(), recommend.Request{UserID: "stranger", K: 3})
	if err != nil {
		t.Fatalf("Recommend(stranger) error = %v", err)
	}
	if resp.Metadata.Strategy != recommend.StrategyPopularity || len(resp.Items) != 3 {
		t.Errorf("stranger got %s with %d items", resp.Metadata.Strategy, len(resp.Items))
	}
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package recommend

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Fixed scoring constants. These are part of the ranking contract and are
// deliberately not configurable.
const (
	// SimilarityWeight is the weight of the affinity term in the blended score.
	SimilarityWeight = 0.7

	// PopularityWeight is the weight of the popularity term in the blended score.
	PopularityWeight = 0.3

	// PopularityDivisor normalizes raw counters. It is a soft cap: values above
	// it yield popularity greater than 1 and are not clamped.
	PopularityDivisor = 100.0

	// DecayDays is the exponential decay constant applied to history age.
	DecayDays = 30.0
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Dimensions is the embedding length D. Vectors of any other length are
	// treated as missing.
	Dimensions int `json:"dimensions"`

	// MaxCandidates caps the score-sorted pool handed to the diversifier.
	// The pool is never cut below the requested k.
	MaxCandidates int `json:"max_candidates"`

	// Timeout bounds the personalized phase. When it expires the engine
	// answers with popularity-only ranking.
	Timeout time.Duration `json:"timeout"`

	// RetryDelay is the pause before the single retry of an unavailable model.
	RetryDelay time.Duration `json:"retry_delay"`

	// EmbedMissing embeds history stories that have no stored embedding on the
	// fly (not persisted). Requires an Embedder and a TextSource.
	EmbedMissing bool `json:"embed_missing"`

	// PopularitySource is used when a request does not name one.
	PopularitySource PopularitySource `json:"popularity_source"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits"`

	// Collaborative contains parameters for the user-pair affinity model.
	Collaborative CollaborativeConfig `json:"collaborative"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultK is used by transports when the caller omits k.
	DefaultK int `json:"default_k"`

	// MaxK clamps k.
	MaxK int `json:"max_k"`
}

// CollaborativeConfig contains parameters for collaborative affinity.
type CollaborativeConfig struct {
	// Neighbours is the number of most similar readers consulted.
	Neighbours int `json:"neighbours"`

	// MaxConcurrent bounds parallel neighbour history reads.
	MaxConcurrent int `json:"max_concurrent"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Dimensions:       1024,
		MaxCandidates:    50,
		Timeout:          3 * time.Second,
		RetryDelay:       250 * time.Millisecond,
		EmbedMissing:     false,
		PopularitySource: PopularityReads,
		Limits: LimitsConfig{
			DefaultK: 10,
			MaxK:     100,
		},
		Collaborative: CollaborativeConfig{
			Neighbours:    50,
			MaxConcurrent: 8,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Dimensions < 1 {
		return fmt.Errorf("dimensions must be positive, got %d", c.Dimensions)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("max_candidates must be positive, got %d", c.MaxCandidates)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be non-negative, got %v", c.RetryDelay)
	}
	if !c.PopularitySource.Valid() {
		return fmt.Errorf("popularity_source must be %q or %q, got %q", PopularityReads, PopularityLikes, c.PopularitySource)
	}
	if c.Limits.DefaultK < 1 {
		return fmt.Errorf("limits.default_k must be positive, got %d", c.Limits.DefaultK)
	}
	if c.Limits.MaxK < c.Limits.DefaultK {
		return fmt.Errorf("limits.max_k must be >= limits.default_k, got %d < %d", c.Limits.MaxK, c.Limits.DefaultK)
	}
	if c.Collaborative.Neighbours < 1 {
		return fmt.Errorf("collaborative.neighbours must be positive, got %d", c.Collaborative.Neighbours)
	}
	if c.Collaborative.MaxConcurrent < 1 {
		return fmt.Errorf("collaborative.max_concurrent must be positive, got %d", c.Collaborative.MaxConcurrent)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// MarshalJSON renders durations as strings for the status endpoint.
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		Timeout    string `json:"timeout"`
		RetryDelay string `json:"retry_delay"`
	}{
		Alias:      (*Alias)(c),
		Timeout:    c.Timeout.String(),
		RetryDelay: c.RetryDelay.String(),
	})
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package safety

import (
	"fmt"
	"math"
)

// Toxicity categories scored by every backend.
const (
	CategoryToxic        = "toxic"
	CategorySevereToxic  = "severe_toxic"
	CategoryObscene      = "obscene"
	CategoryThreat       = "threat"
	CategoryInsult       = "insult"
	CategoryIdentityHate = "identity_hate"
)

// Categories lists the categories in reporting order.
var Categories = []string{
	CategoryToxic,
	CategorySevereToxic,
	CategoryObscene,
	CategoryThreat,
	CategoryInsult,
	CategoryIdentityHate,
}

// Verdict is the outcome of classifying one text.
type Verdict struct {
	Scores       map[string]float64 `json:"scores"`
	Flags        []string           `json:"flags"`
	IsAcceptable bool               `json:"is_acceptable"`
}

// Policy holds per-category thresholds. A category is flagged when its
// score is strictly greater than its threshold.
type Policy struct {
	Thresholds map[string]float64
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{Thresholds: map[string]float64{
		CategoryToxic:        0.5,
		CategorySevereToxic:  0.3,
		CategoryObscene:      0.5,
		CategoryThreat:       0.3,
		CategoryInsult:       0.5,
		CategoryIdentityHate: 0.3,
	}}
}

// WithOverrides returns a copy of p with the given thresholds replaced.
func (p Policy) WithOverrides(overrides map[string]float64) (Policy, error) {
	out := Policy{Thresholds: make(map[string]float64, len(p.Thresholds))}
	for k, v := range p.Thresholds {
		out.Thresholds[k] = v
	}
	for k, v := range overrides {
		if _, ok := out.Thresholds[k]; !ok {
			return p, fmt.Errorf("safety: unknown category %q", k)
		}
		if v < 0 || v > 1 {
			return p, fmt.Errorf("safety: threshold for %s must be in [0,1], got %v", k, v)
		}
		out.Thresholds[k] = v
	}
	return out, nil
}

// Evaluate turns raw scores into a verdict. Missing categories score 0.
func (p Policy) Evaluate(scores map[string]float64) Verdict {
	v := Verdict{
		Scores: make(map[string]float64, len(Categories)),
		Flags:  []string{},
	}
	for _, c := range Categories {
		s := clamp01(scores[c])
		v.Scores[c] = s
		if s > p.Thresholds[c] {
			v.Flags = append(v.Flags, c)
		}
	}
	v.IsAcceptable = len(v.Flags) == 0
	return v
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

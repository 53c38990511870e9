// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package safety

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend uses the OpenAI moderation endpoint and maps its
// categories onto the toxicity categories.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a moderation client. baseURL and model are optional.
func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg), model: model}
}

// Name returns "openai".
func (b *OpenAIBackend) Name() string { return BackendOpenAI }

// Scores classifies text.
func (b *OpenAIBackend) Scores(ctx context.Context, text string) (map[string]float64, error) {
	rsp, err := b.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: b.model,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && (reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	if len(rsp.Results) == 0 {
		return nil, errors.New("empty moderation response")
	}

	s := rsp.Results[0].CategoryScores
	return moderationScores(
		float64(s.Hate), float64(s.HateThreatening),
		float64(s.Harassment), float64(s.HarassmentThreatening),
		float64(s.Sexual), float64(s.Violence),
	), nil
}

// moderationScores maps moderation categories onto toxicity categories.
func moderationScores(hate, hateThreat, harassment, harassmentThreat, sexual, violence float64) map[string]float64 {
	return map[string]float64{
		CategoryToxic:        max(hate, harassment),
		CategorySevereToxic:  max(hateThreat, harassmentThreat),
		CategoryObscene:      sexual,
		CategoryThreat:       max(violence, harassmentThreat, hateThreat),
		CategoryInsult:       harassment,
		CategoryIdentityHate: hate,
	}
}

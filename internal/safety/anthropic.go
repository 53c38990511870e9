// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/goccy/go-json"
)

const judgePrompt = `Rate the following story excerpt for each category with a probability between 0 and 1:
toxic, severe_toxic, obscene, threat, insult, identity_hate.
Fictional violence that is not directed at real people is not a threat.
Respond with a single JSON object using exactly those keys and nothing else.

Excerpt:
`

// AnthropicBackend asks a Claude model to score the toxicity categories.
type AnthropicBackend struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicBackend creates a judge backend. baseURL is optional.
func NewAnthropicBackend(apiKey, baseURL, model string) *AnthropicBackend {
	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicBackend{client: &client, model: model}
}

// Name returns "anthropic".
func (b *AnthropicBackend) Name() string { return BackendAnthropic }

// Scores classifies text.
func (b *AnthropicBackend) Scores(ctx context.Context, text string) (map[string]float64, error) {
	rsp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(judgePrompt + text)),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 429 || apiErr.StatusCode >= 500) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}

	var sb strings.Builder
	for _, content := range rsp.Content {
		if block, ok := content.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(block.Text)
		}
	}
	return parseJudgeScores(sb.String())
}

// parseJudgeScores extracts the first JSON object from a model reply.
func parseJudgeScores(reply string) (map[string]float64, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("judge reply has no JSON object: %q", truncate(reply, 120))
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("judge reply is not a score object: %w", err)
	}

	scores := make(map[string]float64, len(Categories))
	for _, c := range Categories {
		if v, ok := raw[c]; ok {
			scores[c] = v
		}
	}
	return scores, nil
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package safety

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// HTTPBackend calls a text-classification server hosting a multi-label
// toxicity model (for example toxic-bert behind text-embeddings-inference).
//
// Request:  POST {baseURL}/predict {"inputs": "...", "raw_scores": false}
// Response: [{"label": "toxic", "score": 0.93}, ...]
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a classification server client.
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns "http".
func (b *HTTPBackend) Name() string { return BackendHTTP }

type predictRequest struct {
	Inputs    string `json:"inputs"`
	RawScores bool   `json:"raw_scores"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Scores classifies text.
func (b *HTTPBackend) Scores(ctx context.Context, text string) (map[string]float64, error) {
	body, err := json.Marshal(predictRequest{Inputs: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("predict failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}

	var results []labelScore
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode predict response: %w", err)
	}

	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[strings.ToLower(r.Label)] = r.Score
	}
	return scores, nil
}

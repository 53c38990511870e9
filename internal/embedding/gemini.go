// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	genaiopt "google.golang.org/api/option"
)

// geminiBackend embeds with a Google Generative AI embedding model.
type geminiBackend struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func newGeminiBackend(ctx context.Context, cfg *Config) (*geminiBackend, error) {
	opts := []genaiopt.ClientOption{genaiopt.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, genaiopt.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: create client: %w", BackendGemini, err)
	}

	model := client.EmbeddingModel(cfg.Model)
	model.TaskType = genai.TaskTypeRetrievalDocument

	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) Name() string { return BackendGemini }

func (b *geminiBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := b.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classify(BackendGemini, httpCode(err), err)
	}

	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%s: empty embedding response", BackendGemini)
	}
	return rsp.Embedding.Values, nil
}

func (b *geminiBackend) Close() error {
	return b.client.Close()
}

// httpCode extracts an HTTP status from Google API errors, or 0.
func httpCode(err error) int {
	var coder interface{ HTTPCode() int }
	if errors.As(err, &coder) {
		if code := coder.HTTPCode(); code > 0 {
			return code
		}
	}
	return 0
}

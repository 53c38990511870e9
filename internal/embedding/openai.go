// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// openAIBackend talks to the OpenAI embeddings API or any server exposing the
// same contract (text-embeddings-inference, vLLM, Ollama).
type openAIBackend struct {
	client     *openai.Client
	model      string
	dimensions int
}

func newOpenAIBackend(cfg *Config) *openAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	b := &openAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
	if cfg.RequestDimensions {
		b.dimensions = cfg.Dimensions
	}
	return b
}

func (b *openAIBackend) Name() string { return BackendOpenAI }

func (b *openAIBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(b.model),
		Dimensions: b.dimensions,
	})
	if err != nil {
		return nil, classify(BackendOpenAI, statusCode(err), err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s: empty embedding response", BackendOpenAI)
	}
	return rsp.Data[0].Embedding, nil
}

func (b *openAIBackend) Close() error { return nil }

// statusCode extracts the HTTP status from go-openai errors.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

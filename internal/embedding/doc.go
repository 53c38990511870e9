// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

/*
Package embedding provides the text-embedding provider used to build story
content vectors.

A Provider is opened once at startup and injected wherever embeddings are
needed; there is no package-level model handle.

	provider, err := embedding.Open(ctx, cfg, logger)
	if err != nil {
	    return err
	}
	defer provider.Close()

	vec, err := provider.Embed(ctx, storyText)

# Backends

  - openai: the OpenAI embeddings API and compatible servers
    (text-embeddings-inference, vLLM, Ollama) via sashabaranov/go-openai
  - gemini: Google Generative AI embedding models via generative-ai-go

# Call Path

Embed consults an in-memory LRU, then the optional Badger cache, then calls
the backend through a token-bucket limiter and a circuit breaker. Results are
checked against the configured dimensions and L2-normalized, so
cosine(v, v) = 1.

Backend overload (HTTP 429/5xx), transport failures, per-call timeouts and an
open circuit are reported as recommend.ErrModelUnavailable, which callers may
retry once.
*/
package embedding

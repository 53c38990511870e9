// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// Backend is a remote text-embedding model.
// Errors that indicate the model is temporarily unable to serve must wrap
// recommend.ErrModelUnavailable.
type Backend interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// Supported backend names.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// newBackend builds the configured backend.
func newBackend(ctx context.Context, cfg *Config) (Backend, error) {
	switch cfg.Backend {
	case BackendOpenAI:
		return newOpenAIBackend(cfg), nil
	case BackendGemini:
		return newGeminiBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("embedding: unknown backend %q", cfg.Backend)
	}
}

// unavailableStatus reports whether an HTTP status means "try again later".
func unavailableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// classify wraps transport-level and overload errors as ErrModelUnavailable.
// Context errors are returned unchanged.
func classify(backend string, code int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	switch {
	case code > 0 && unavailableStatus(code):
		return fmt.Errorf("%s: %w: %w", backend, recommend.ErrModelUnavailable, err)
	case errors.As(err, &netErr):
		return fmt.Errorf("%s: %w: %w", backend, recommend.ErrModelUnavailable, err)
	case code == 0 && looksUnavailable(err.Error()):
		return fmt.Errorf("%s: %w: %w", backend, recommend.ErrModelUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", backend, err)
	}
}

func looksUnavailable(msg string) bool {
	msg = strings.ToLower(msg)
	for _, s := range []string{"unavailable", "resourceexhausted", "resource exhausted", "connection refused", "eof", "loading"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

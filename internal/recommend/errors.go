// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by the engine, stores and providers.
// Callers match with errors.Is.
var (
	// ErrInvalidArgument reports a bad user ID or k. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound reports a missing user history or story.
	// The engine treats it as "no profile" rather than a failure.
	ErrNotFound = errors.New("not found")

	// ErrModelUnavailable reports that the embedding provider is not ready.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrStoreUnavailable reports a failed interaction store read.
	ErrStoreUnavailable = errors.New("interaction store unavailable")

	// ErrRecommendationUnavailable is surfaced when no ranking at all could be produced.
	ErrRecommendationUnavailable = errors.New("recommendation unavailable")
)

// StoreError wraps err as ErrStoreUnavailable unless it already carries a
// taxonomy error or is a context error.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidArgument):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
}

// EmbedWithRetry calls e.Embed and, if the model is unavailable, retries once
// after delay. Any other error is returned immediately.
func EmbedWithRetry(ctx context.Context, e Embedder, text string, delay time.Duration) ([]float32, error) {
	vec, err := e.Embed(ctx, text)
	if err == nil || !errors.Is(err, ErrModelUnavailable) {
		return vec, err
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return e.Embed(ctx, text)
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/validation"
)

// InteractionRequest is the body of the read and like endpoints.
type InteractionRequest struct {
	UserID string `json:"user_id" validate:"required,notblank,max=128"`
}

// ClassifyRequest is the body of the classify endpoint.
type ClassifyRequest struct {
	Text string `json:"text" validate:"required,notblank"`
}

// RecommendationsQuery holds the query parameters of the recommendation endpoints.
type RecommendationsQuery struct {
	K      int                        `json:"k"`
	Source recommend.PopularitySource `json:"source" validate:"omitempty,popularity_source"`
}

// decodeJSON decodes a single JSON object into dst and validates it.
func decodeJSON(r *http.Request, dst interface{}) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: request body is empty", recommend.ErrInvalidArgument)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", recommend.ErrInvalidArgument, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", recommend.ErrInvalidArgument)
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr
	}
	return nil
}

// parseRecommendationsQuery reads k and source. An absent k means defaultK;
// non-positive values are passed through for the engine to reject.
func parseRecommendationsQuery(r *http.Request, defaultK int) (RecommendationsQuery, error) {
	q := RecommendationsQuery{K: defaultK}

	if raw := strings.TrimSpace(r.URL.Query().Get("k")); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: k must be an integer", recommend.ErrInvalidArgument)
		}
		q.K = k
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("source")); raw != "" {
		q.Source = recommend.PopularitySource(strings.ToLower(raw))
	}

	if verr := validation.ValidateStruct(&q); verr != nil {
		return q, verr
	}
	return q, nil
}

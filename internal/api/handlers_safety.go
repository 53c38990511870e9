// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package api

import "net/http"

// Classify handles POST /api/v1/safety/classify
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Classifier == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeFeatureNotConfigured, "content classifier is not configured")
		return
	}

	var body ClassifyRequest
	if err := decodeJSON(r, &body); err != nil {
		rw.FromError(err)
		return
	}

	verdict, err := h.deps.Classifier.Classify(r.Context(), body.Text)
	if err != nil {
		rw.FromError(err)
		return
	}

	rw.Success(verdict)
}

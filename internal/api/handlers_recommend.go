// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carlulsoe/stellar-spire/internal/logging"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// Recommendations handles GET /api/v1/recommendations/user/{userID}?k=&source=
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	q, err := parseRecommendationsQuery(r, h.cfg.DefaultK)
	if err != nil {
		rw.FromError(err)
		return
	}

	resp, err := h.deps.Recommender.Recommend(r.Context(), recommend.Request{
		UserID:    chi.URLParam(r, "userID"),
		K:         q.K,
		Source:    q.Source,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		rw.FromError(err)
		return
	}

	rw.List(resp, len(resp.Items))
}

// PopularStories handles GET /api/v1/stories/popular?k=&source=
func (h *Handler) PopularStories(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	q, err := parseRecommendationsQuery(r, h.cfg.DefaultK)
	if err != nil {
		rw.FromError(err)
		return
	}

	items, err := h.deps.Recommender.Popular(r.Context(), q.K, q.Source)
	if err != nil {
		rw.FromError(err)
		return
	}
	if items == nil {
		items = []recommend.Recommendation{}
	}

	rw.List(items, len(items))
}

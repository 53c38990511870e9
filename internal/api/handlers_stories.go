// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carlulsoe/stellar-spire/internal/logging"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// ReadResponse is returned after a read is recorded.
type ReadResponse struct {
	StoryID string `json:"story_id"`
	UserID  string `json:"user_id"`
}

// LikeResponse is the like state after a toggle.
type LikeResponse struct {
	StoryID    string `json:"story_id"`
	Liked      bool   `json:"liked"`
	LikesCount int64  `json:"likes_count"`
}

// RecordRead handles POST /api/v1/stories/{storyID}/reads
func (h *Handler) RecordRead(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	storyID := chi.URLParam(r, "storyID")

	var body InteractionRequest
	if err := decodeJSON(r, &body); err != nil {
		rw.FromError(err)
		return
	}
	userID := strings.TrimSpace(body.UserID)

	err := h.deps.Interactions.RecordRead(r.Context(), recommend.ReadEvent{
		UserID:  userID,
		StoryID: storyID,
		ReadAt:  h.now().UTC(),
	})
	if err != nil {
		rw.FromError(err)
		return
	}

	rw.Created(ReadResponse{StoryID: storyID, UserID: userID})
}

// ToggleLike handles POST /api/v1/stories/{storyID}/likes
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	storyID := chi.URLParam(r, "storyID")

	var body InteractionRequest
	if err := decodeJSON(r, &body); err != nil {
		rw.FromError(err)
		return
	}

	liked, count, err := h.deps.Interactions.ToggleLike(r.Context(), strings.TrimSpace(body.UserID), storyID)
	if err != nil {
		rw.FromError(err)
		return
	}

	rw.Success(LikeResponse{StoryID: storyID, Liked: liked, LikesCount: count})
}

// ReindexStory handles POST /api/v1/stories/{storyID}/embedding
func (h *Handler) ReindexStory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Indexer == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeFeatureNotConfigured, "embedding indexer is not configured")
		return
	}

	storyID := chi.URLParam(r, "storyID")
	res, err := h.deps.Indexer.Reindex(r.Context(), storyID)
	if err != nil {
		rw.FromError(err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("story_id", storyID).
		Int("dimensions", res.Dimensions).
		Msg("story embedding refreshed")
	rw.Success(res)
}

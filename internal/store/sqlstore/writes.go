// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// UpdateEmbedding replaces a story's content embedding.
// The vector must have the configured length and finite components.
func (s *Store) UpdateEmbedding(ctx context.Context, storyID string, vector []float32) (err error) {
	start := time.Now()
	defer func() { err = s.observe("update_embedding", "stories", start, err) }()

	if len(vector) != s.dims {
		return fmt.Errorf("%w: embedding has %d dimensions, want %d", recommend.ErrInvalidArgument, len(vector), s.dims)
	}
	for _, x := range vector {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: embedding has non-finite components", recommend.ErrInvalidArgument)
		}
	}

	value, err := s.dialect.vectorWrite(vector)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE stories SET embedding = ?, embedding_updated_at = ? WHERE id = ?"),
		value, s.now().UTC(), storyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("story %s: %w", storyID, recommend.ErrNotFound)
	}
	return nil
}

// RecordRead appends a read event. Unknown stories yield recommend.ErrNotFound.
func (s *Store) RecordRead(ctx context.Context, ev recommend.ReadEvent) (err error) {
	start := time.Now()
	defer func() { err = s.observe("record_read", "read_events", start, err) }()

	if ev.UserID == "" || ev.StoryID == "" {
		return fmt.Errorf("%w: user id and story id are required", recommend.ErrInvalidArgument)
	}
	if ev.ReadAt.IsZero() {
		ev.ReadAt = s.now()
	}

	if err := s.requireStory(ctx, s.db, ev.StoryID); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		s.q("INSERT INTO read_events (user_id, story_id, read_at) VALUES (?, ?, ?)"),
		ev.UserID, ev.StoryID, ev.ReadAt.UTC())
	return err
}

// ToggleLike likes the story for the user, or removes an existing like, and
// keeps stories.likes_count in step. It returns the new state and count.
func (s *Store) ToggleLike(ctx context.Context, userID, storyID string) (liked bool, count int64, err error) {
	start := time.Now()
	defer func() { err = s.observe("toggle_like", "story_likes", start, err) }()

	if userID == "" || storyID == "" {
		return false, 0, fmt.Errorf("%w: user id and story id are required", recommend.ErrInvalidArgument)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.requireStory(ctx, tx, storyID); err != nil {
		return false, 0, err
	}

	var one int
	err = tx.QueryRowContext(ctx, s.q("SELECT 1 FROM story_likes WHERE user_id = ? AND story_id = ?"), userID, storyID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		liked = true
		if _, err := tx.ExecContext(ctx,
			s.q("INSERT INTO story_likes (user_id, story_id, created_at) VALUES (?, ?, ?)"),
			userID, storyID, s.now().UTC()); err != nil {
			return false, 0, err
		}
		if _, err := tx.ExecContext(ctx,
			s.q("UPDATE stories SET likes_count = likes_count + 1 WHERE id = ?"), storyID); err != nil {
			return false, 0, err
		}
	case err != nil:
		return false, 0, err
	default:
		if _, err := tx.ExecContext(ctx,
			s.q("DELETE FROM story_likes WHERE user_id = ? AND story_id = ?"), userID, storyID); err != nil {
			return false, 0, err
		}
		if _, err := tx.ExecContext(ctx,
			s.q("UPDATE stories SET likes_count = likes_count - 1 WHERE id = ? AND likes_count > 0"), storyID); err != nil {
			return false, 0, err
		}
	}

	if err := tx.QueryRowContext(ctx, s.q("SELECT likes_count FROM stories WHERE id = ?"), storyID).Scan(&count); err != nil {
		return false, 0, err
	}
	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

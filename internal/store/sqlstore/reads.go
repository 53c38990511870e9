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
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

const maxBind = 500

// ReadHistory returns the user's read events joined with story embeddings,
// newest first. A user with no read events yields recommend.ErrNotFound.
func (s *Store) ReadHistory(ctx context.Context, userID string) (history []recommend.HistoryEntry, err error) {
	start := time.Now()
	defer func() { err = s.observe("read_history", "read_events", start, err) }()

	query := fmt.Sprintf(`SELECT r.story_id, r.read_at, %s
		FROM read_events r
		LEFT JOIN stories s ON s.id = r.story_id
		WHERE r.user_id = ?
		ORDER BY r.read_at DESC, r.story_id ASC`, s.dialect.vectorRead("s.embedding"))

	rows, err := s.db.QueryContext(ctx, s.q(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry recommend.HistoryEntry
			raw   sql.NullString
		)
		if err := rows.Scan(&entry.StoryID, &entry.ReadAt, &raw); err != nil {
			return nil, err
		}
		entry.Embedding = s.decodeVector(entry.StoryID, raw)
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, recommend.ErrNotFound)
	}
	return history, nil
}

// StoryIDsExcluding returns every story ID not in exclude, ordered by ID.
// Filtering happens in Go so large exclusion lists never hit bind limits.
func (s *Store) StoryIDsExcluding(ctx context.Context, exclude []string) (ids []string, err error) {
	start := time.Now()
	defer func() { err = s.observe("story_ids", "stories", start, err) }()

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM stories ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if _, ok := skip[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// Embeddings returns stored embeddings. Stories without one are absent.
func (s *Store) Embeddings(ctx context.Context, storyIDs []string) (out map[string][]float32, err error) {
	start := time.Now()
	defer func() { err = s.observe("embeddings", "stories", start, err) }()

	out = make(map[string][]float32, len(storyIDs))
	for _, chunk := range chunks(storyIDs, maxBind) {
		query := fmt.Sprintf("SELECT id, %s FROM stories WHERE embedding IS NOT NULL AND id IN (%s)",
			s.dialect.vectorRead("embedding"), placeholders(len(chunk)))

		if err := s.scanRows(ctx, query, anyArgs(chunk), func(rows *sql.Rows) error {
			var (
				id  string
				raw sql.NullString
			)
			if err := rows.Scan(&id, &raw); err != nil {
				return err
			}
			if v := s.decodeVector(id, raw); v != nil {
				out[id] = v
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Popularity returns raw counters: read events per story for reads, the
// likes counter for likes. Stories without reads are absent (count 0).
func (s *Store) Popularity(ctx context.Context, source recommend.PopularitySource, storyIDs []string) (out map[string]int64, err error) {
	start := time.Now()
	table := "read_events"
	if source == recommend.PopularityLikes {
		table = "stories"
	}
	defer func() { err = s.observe("popularity", table, start, err) }()

	out = make(map[string]int64, len(storyIDs))
	for _, chunk := range chunks(storyIDs, maxBind) {
		var query string
		switch source {
		case recommend.PopularityLikes:
			query = fmt.Sprintf("SELECT id, likes_count FROM stories WHERE id IN (%s)", placeholders(len(chunk)))
		case recommend.PopularityReads, "":
			query = fmt.Sprintf("SELECT story_id, COUNT(*) FROM read_events WHERE story_id IN (%s) GROUP BY story_id", placeholders(len(chunk)))
		default:
			return nil, fmt.Errorf("%w: unknown popularity source %q", recommend.ErrInvalidArgument, source)
		}

		if err := s.scanRows(ctx, query, anyArgs(chunk), func(rows *sql.Rows) error {
			var (
				id    string
				count int64
			)
			if err := rows.Scan(&id, &count); err != nil {
				return err
			}
			out[id] = count
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Stories hydrates story records. Unknown IDs are absent from the result.
func (s *Store) Stories(ctx context.Context, storyIDs []string) (stories []recommend.Story, err error) {
	start := time.Now()
	defer func() { err = s.observe("stories", "stories", start, err) }()

	stories = make([]recommend.Story, 0, len(storyIDs))
	for _, chunk := range chunks(storyIDs, maxBind) {
		query := fmt.Sprintf(`SELECT s.id, s.title, COALESCE(s.description, ''), COALESCE(s.author_id, ''),
				(SELECT COUNT(*) FROM read_events r WHERE r.story_id = s.id),
				s.likes_count, s.created_at, s.updated_at
			FROM stories s
			WHERE s.id IN (%s)`, placeholders(len(chunk)))

		if err := s.scanRows(ctx, query, anyArgs(chunk), func(rows *sql.Rows) error {
			var st recommend.Story
			if err := rows.Scan(&st.ID, &st.Title, &st.Description, &st.AuthorID,
				&st.ReadCount, &st.LikesCount, &st.CreatedAt, &st.UpdatedAt); err != nil {
				return err
			}
			stories = append(stories, st)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return stories, nil
}

// SimilarUsers returns up to limit neighbours from the precomputed pair table.
func (s *Store) SimilarUsers(ctx context.Context, userID string, limit int) (out []recommend.UserSimilarity, err error) {
	start := time.Now()
	defer func() { err = s.observe("similar_users", "user_similarities", start, err) }()

	query := `SELECT other_user_id, score FROM user_similarities
		WHERE user_id = ?
		ORDER BY score DESC, other_user_id ASC
		LIMIT ?`

	err = s.scanRows(ctx, query, []any{userID, limit}, func(rows *sql.Rows) error {
		var sim recommend.UserSimilarity
		if err := rows.Scan(&sim.UserID, &sim.Score); err != nil {
			return err
		}
		out = append(out, sim)
		return nil
	})
	return out, err
}

// ReadStoryIDs returns the distinct stories a user has read.
func (s *Store) ReadStoryIDs(ctx context.Context, userID string) (ids []string, err error) {
	start := time.Now()
	defer func() { err = s.observe("read_story_ids", "read_events", start, err) }()

	err = s.scanRows(ctx, "SELECT DISTINCT story_id FROM read_events WHERE user_id = ? ORDER BY story_id", []any{userID},
		func(rows *sql.Rows) error {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
	return ids, err
}

// StoryText returns all chapter contents of a story joined with single
// spaces, in chapter order. A story without chapters yields "".
func (s *Store) StoryText(ctx context.Context, storyID string) (text string, err error) {
	start := time.Now()
	defer func() { err = s.observe("story_text", "chapters", start, err) }()

	if err := s.requireStory(ctx, s.db, storyID); err != nil {
		return "", err
	}

	var parts []string
	err = s.scanRows(ctx, "SELECT content FROM chapters WHERE story_id = ? ORDER BY chapter_no, id", []any{storyID},
		func(rows *sql.Rows) error {
			var content string
			if err := rows.Scan(&content); err != nil {
				return err
			}
			parts = append(parts, content)
			return nil
		})
	if err != nil {
		return "", err
	}
	return strings.Join(parts, " "), nil
}

// StoriesMissingEmbedding returns up to limit story IDs without an embedding.
func (s *Store) StoriesMissingEmbedding(ctx context.Context, limit int) (ids []string, err error) {
	start := time.Now()
	defer func() { err = s.observe("missing_embeddings", "stories", start, err) }()

	err = s.scanRows(ctx, "SELECT id FROM stories WHERE embedding IS NULL ORDER BY id LIMIT ?", []any{limit},
		func(rows *sql.Rows) error {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
	return ids, err
}

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireStory returns recommend.ErrNotFound for unknown stories.
func (s *Store) requireStory(ctx context.Context, q rowQuerier, storyID string) error {
	var one int
	err := q.QueryRowContext(ctx, s.q("SELECT 1 FROM stories WHERE id = ?"), storyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("story %s: %w", storyID, recommend.ErrNotFound)
	}
	return err
}

// scanRows runs a query and calls fn for every row.
func (s *Store) scanRows(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// decodeVector parses a stored vector. Unreadable or wrongly sized vectors
// are treated as missing.
func (s *Store) decodeVector(storyID string, raw sql.NullString) []float32 {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		s.logger.Warn().Err(err).Str("story_id", storyID).Msg("unreadable embedding treated as missing")
		return nil
	}
	if len(v) != s.dims {
		s.logger.Warn().
			Str("story_id", storyID).
			Int("got", len(v)).
			Int("want", s.dims).
			Msg("embedding dimension mismatch treated as missing")
		return nil
	}
	return v
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PopularitySource selects which per-story counter feeds the popularity term.
type PopularitySource string

const (
	// PopularityReads counts read events per story.
	PopularityReads PopularitySource = "reads"

	// PopularityLikes uses the explicit likes counter maintained per story.
	PopularityLikes PopularitySource = "likes"
)

// Valid reports whether s names a known popularity source.
func (s PopularitySource) Valid() bool {
	return s == PopularityReads || s == PopularityLikes
}

// String returns the source name.
func (s PopularitySource) String() string {
	return string(s)
}

// ParsePopularitySource parses a popularity source name (case-insensitive).
// An empty string yields the empty source, which callers resolve to their default.
func ParsePopularitySource(s string) (PopularitySource, error) {
	src := PopularitySource(strings.ToLower(strings.TrimSpace(s)))
	if src == "" || src.Valid() {
		return src, nil
	}
	return "", fmt.Errorf("%w: unknown popularity source %q", ErrInvalidArgument, s)
}

// Strategy identifies which ranking path produced a response.
type Strategy string

const (
	// StrategyPersonalized is the profile + blend + diversity path.
	StrategyPersonalized Strategy = "personalized"

	// StrategyPopularity ranks non-interacted stories by popularity alone.
	StrategyPopularity Strategy = "popularity"
)

// Fallback reasons reported when the popularity path replaces the personalized one.
const (
	FallbackNoProfile        = "no_profile"
	FallbackModelUnavailable = "model_unavailable"
	FallbackTimeout          = "timeout"
)

// ReadEvent records a user viewing a story's content. Append-only.
type ReadEvent struct {
	UserID  string    `json:"user_id"`
	StoryID string    `json:"story_id"`
	ReadAt  time.Time `json:"read_at"`
}

// HistoryEntry is a read event joined with the story's current embedding.
// Embedding is nil when the story has never been embedded.
type HistoryEntry struct {
	StoryID   string
	ReadAt    time.Time
	Embedding []float32
}

// Story is the hydrated story record returned to callers.
type Story struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AuthorID    string    `json:"author_id,omitempty"`
	ReadCount   int64     `json:"read_count"`
	LikesCount  int64     `json:"likes_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserSimilarity is a precomputed similarity between the requesting user and another reader.
type UserSimilarity struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
}

// Profile is the time-decayed average of a user's history embeddings.
// It is built per request and never persisted.
type Profile struct {
	Vector      []float64
	TotalWeight float64
}

// Candidate is a story under consideration during a single recommendation call.
type Candidate struct {
	StoryID    string    `json:"story_id"`
	Similarity float64   `json:"similarity"`
	Popularity float64   `json:"popularity"`
	Score      float64   `json:"score"`
	Embedding  []float32 `json:"-"`
}

// SortCandidates orders candidates by score descending, then story ID ascending.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].StoryID < candidates[j].StoryID
	})
}

// Request is a recommendation request.
type Request struct {
	// UserID is the reader to recommend for. Required.
	UserID string `json:"user_id"`

	// K is the number of stories to return. Must be positive.
	K int `json:"k"`

	// Source overrides the configured popularity source when set.
	Source PopularitySource `json:"source,omitempty"`

	// RequestID is used for tracing. Generated if empty.
	RequestID string `json:"request_id,omitempty"`
}

// Recommendation is a hydrated story with the scores that ranked it.
type Recommendation struct {
	Story
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Popularity float64 `json:"popularity"`
}

// Response contains ranked, hydrated recommendations.
type Response struct {
	Items    []Recommendation `json:"items"`
	Metadata ResponseMetadata `json:"metadata"`
}

// StoryIDs returns the item IDs in rank order.
func (r *Response) StoryIDs() []string {
	ids := make([]string, len(r.Items))
	for i := range r.Items {
		ids[i] = r.Items[i].ID
	}
	return ids
}

// ResponseMetadata describes how a response was produced.
type ResponseMetadata struct {
	RequestID        string           `json:"request_id"`
	UserID           string           `json:"user_id"`
	Strategy         Strategy         `json:"strategy"`
	FallbackReason   string           `json:"fallback_reason,omitempty"`
	Affinity         string           `json:"affinity,omitempty"`
	Diversifier      string           `json:"diversifier,omitempty"`
	PopularitySource PopularitySource `json:"popularity_source"`
	TotalCandidates  int              `json:"total_candidates"`
	LatencyMS        int64            `json:"latency_ms"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Store is the read side of the interaction store consumed by the engine.
type Store interface {
	// ReadHistory returns the user's read events joined with story embeddings.
	// Returns ErrNotFound when the user has no history record at all.
	ReadHistory(ctx context.Context, userID string) ([]HistoryEntry, error)

	// StoryIDsExcluding returns every story ID not in exclude.
	StoryIDsExcluding(ctx context.Context, exclude []string) ([]string, error)

	// Embeddings returns the stored embeddings for the given stories.
	// Stories without an embedding are absent from the map.
	Embeddings(ctx context.Context, storyIDs []string) (map[string][]float32, error)

	// Popularity returns raw counter values for the given stories.
	Popularity(ctx context.Context, source PopularitySource, storyIDs []string) (map[string]int64, error)

	// Stories hydrates story records. Order of the result is unspecified.
	Stories(ctx context.Context, storyIDs []string) ([]Story, error)
}

// SimilarityStore exposes the precomputed user-pair similarity table.
type SimilarityStore interface {
	// SimilarUsers returns up to limit neighbours ordered by similarity descending.
	SimilarUsers(ctx context.Context, userID string, limit int) ([]UserSimilarity, error)

	// ReadStoryIDs returns the distinct stories a user has read.
	ReadStoryIDs(ctx context.Context, userID string) ([]string, error)
}

// EmbeddingWriter is the single write API used by the embedding maintenance pipeline.
type EmbeddingWriter interface {
	UpdateEmbedding(ctx context.Context, storyID string, vector []float32) error
}

// TextSource returns the full text of a story used for embedding.
type TextSource interface {
	StoryText(ctx context.Context, storyID string) (string, error)
}

// Embedder turns text into a fixed-length content embedding.
// Implementations return an error wrapping ErrModelUnavailable when the model is not ready.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// AffinityInput is the per-request data an AffinityModel may use.
type AffinityInput struct {
	UserID  string
	History []HistoryEntry
	Now     time.Time
}

// Affinity scores how well a candidate matches one user's taste.
// ok is false for candidates it cannot score; those are dropped before blending.
type Affinity interface {
	Similarity(c *Candidate) (similarity float64, ok bool)
}

// AffinityModel fits an Affinity for a single request.
// ok is false when the user has no usable signal, in which case the engine
// falls back to popularity-only ranking.
type AffinityModel interface {
	Name() string
	Fit(ctx context.Context, in AffinityInput) (aff Affinity, ok bool, err error)
}

// Scorer blends affinity and popularity into candidate scores.
type Scorer interface {
	Score(aff Affinity, candidates []Candidate, popularity map[string]int64) []Candidate
}

// Diversifier re-ranks score-sorted candidates for topical coverage.
type Diversifier interface {
	Name() string
	Diversify(ctx context.Context, ranked []Candidate, k int) []Candidate
}

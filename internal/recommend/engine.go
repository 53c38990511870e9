// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/carlulsoe/stellar-spire/internal/metrics"
)

// errNoProfile signals that the affinity model found no usable signal.
var errNoProfile = errors.New("no profile")

// Engine orchestrates profile building, scoring, diversity re-ranking and
// hydration. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger

	store       Store
	affinity    AffinityModel
	scorer      Scorer
	diversifier Diversifier

	// Optional on-the-fly embedding of history stories without a stored vector.
	embedder Embedder
	texts    TextSource

	now func() time.Time

	requestCount  atomic.Int64
	fallbackCount atomic.Int64
	errorCount    atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithAffinityModel sets the model producing the similarity term.
func WithAffinityModel(m AffinityModel) Option {
	return func(e *Engine) { e.affinity = m }
}

// WithScorer sets the blend scorer.
func WithScorer(s Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithDiversifier sets the diversity re-ranker.
func WithDiversifier(d Diversifier) Option {
	return func(e *Engine) { e.diversifier = d }
}

// WithEmbedder enables embedding of history stories that lack a stored vector.
// It only takes effect when Config.EmbedMissing is set.
func WithEmbedder(emb Embedder, texts TextSource) Option {
	return func(e *Engine) {
		e.embedder = emb
		e.texts = texts
	}
}

// WithClock overrides the time source. Used by tests for deterministic decay.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, store Store, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	e := &Engine{
		config: cfg.Clone(),
		logger: logger.With().Str("component", "recommend").Logger(),
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case e.affinity == nil:
		return nil, fmt.Errorf("affinity model is required")
	case e.scorer == nil:
		return nil, fmt.Errorf("scorer is required")
	case e.diversifier == nil:
		return nil, fmt.Errorf("diversifier is required")
	}
	if e.config.EmbedMissing && (e.embedder == nil || e.texts == nil) {
		e.logger.Warn().Msg("embed_missing enabled without embedder, stories without embeddings will be skipped")
		e.config.EmbedMissing = false
	}

	return e, nil
}

// Recommend returns up to k hydrated stories for the user, best first.
//
// A user without usable history, an embedding model that stays unavailable
// after one retry, and a personalized phase that exceeds Config.Timeout all
// degrade to popularity-only ranking. Store failures are returned as
// ErrStoreUnavailable. Caller cancellation returns the context error.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := e.now()
	e.requestCount.Add(1)

	req, err := e.prepareRequest(req)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Int("k", req.K).
		Logger()
	logger.Debug().Msg("processing recommendation request")

	result, err := e.rank(ctx, req, logger)
	if err != nil {
		e.errorCount.Add(1)
		metrics.RecordRecommendationError(err)
		return nil, err
	}

	items, err := e.hydrate(ctx, result.ranked)
	if err != nil {
		e.errorCount.Add(1)
		metrics.RecordRecommendationError(err)
		return nil, err
	}

	resp := &Response{
		Items: items,
		Metadata: ResponseMetadata{
			RequestID:        req.RequestID,
			UserID:           req.UserID,
			Strategy:         result.strategy,
			FallbackReason:   result.reason,
			PopularitySource: req.Source,
			TotalCandidates:  result.total,
			LatencyMS:        e.now().Sub(start).Milliseconds(),
			Timestamp:        e.now(),
		},
	}
	if result.strategy == StrategyPersonalized {
		resp.Metadata.Affinity = e.affinity.Name()
		resp.Metadata.Diversifier = e.diversifier.Name()
	}

	metrics.RecordRecommendation(string(result.strategy), result.reason, result.total, e.now().Sub(start))

	logger.Debug().
		Str("strategy", string(result.strategy)).
		Str("fallback_reason", result.reason).
		Int("candidates", result.total).
		Int("returned", len(items)).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Msg("recommendation complete")

	return resp, nil
}

// Popular returns the k most popular stories across the whole catalog,
// without excluding any reader's history.
func (e *Engine) Popular(ctx context.Context, k int, source PopularitySource) ([]Recommendation, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if k > e.config.Limits.MaxK {
		k = e.config.Limits.MaxK
	}
	if source == "" {
		source = e.config.PopularitySource
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown popularity source %q", ErrInvalidArgument, source)
	}

	ranked, _, err := e.popular(ctx, Request{K: k, Source: source}, &requestState{historyLoaded: true})
	if err != nil {
		metrics.RecordRecommendationError(err)
		return nil, err
	}
	return e.hydrate(ctx, ranked)
}

// prepareRequest validates the request and applies defaults.
// It performs no I/O.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) (Request, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return req, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if req.K <= 0 {
		return req, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, req.K)
	}
	if req.K > e.config.Limits.MaxK {
		req.K = e.config.Limits.MaxK
	}
	if req.Source == "" {
		req.Source = e.config.PopularitySource
	}
	if !req.Source.Valid() {
		return req, fmt.Errorf("%w: unknown popularity source %q", ErrInvalidArgument, req.Source)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	return req, nil
}

// rankResult is the outcome of the ranking stage before hydration.
type rankResult struct {
	ranked   []Candidate
	strategy Strategy
	reason   string
	total    int
}

// requestState carries data fetched by the personalized phase that the
// popularity fallback can reuse.
type requestState struct {
	history       []HistoryEntry
	historyLoaded bool
}

// rank runs the personalized phase under the configured timeout and falls
// back to popularity ranking when appropriate.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) rank(ctx context.Context, req Request, logger zerolog.Logger) (rankResult, error) {
	state := &requestState{}

	personalCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	ranked, total, err := e.personalized(personalCtx, req, state)
	timedOut := personalCtx.Err() != nil
	cancel()

	if err == nil {
		return rankResult{ranked: ranked, strategy: StrategyPersonalized, total: total}, nil
	}

	var reason string
	switch {
	case ctx.Err() != nil:
		return rankResult{}, fmt.Errorf("recommend: %w", ctx.Err())
	case errors.Is(err, errNoProfile):
		reason = FallbackNoProfile
	case errors.Is(err, ErrModelUnavailable):
		reason = FallbackModelUnavailable
	case timedOut:
		reason = FallbackTimeout
	default:
		return rankResult{}, err
	}

	e.fallbackCount.Add(1)
	logger.Info().Str("reason", reason).Err(err).Msg("falling back to popularity ranking")

	ranked, total, err = e.popular(ctx, req, state)
	if err != nil {
		if ctx.Err() != nil {
			return rankResult{}, fmt.Errorf("recommend: %w", ctx.Err())
		}
		return rankResult{}, err
	}
	return rankResult{ranked: ranked, strategy: StrategyPopularity, reason: reason, total: total}, nil
}

// personalized builds the user's affinity, scores every non-interacted story
// and diversifies the capped, score-sorted pool.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) personalized(ctx context.Context, req Request, state *requestState) ([]Candidate, int, error) {
	if err := e.loadHistory(ctx, req.UserID, state); err != nil {
		return nil, 0, err
	}

	history, err := e.fillMissingEmbeddings(ctx, state.history)
	if err != nil {
		return nil, 0, err
	}

	aff, ok, err := e.affinity.Fit(ctx, AffinityInput{
		UserID:  req.UserID,
		History: history,
		Now:     e.now(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fit %s affinity: %w", e.affinity.Name(), err)
	}
	if !ok {
		return nil, 0, errNoProfile
	}

	ids, err := e.store.StoryIDsExcluding(ctx, historyIDs(state.history))
	if err != nil {
		return nil, 0, StoreError("list candidate stories", err)
	}
	if len(ids) == 0 {
		return []Candidate{}, 0, nil
	}

	var (
		embeddings map[string][]float32
		popularity map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		embeddings, err = e.store.Embeddings(gctx, ids)
		return StoreError("load candidate embeddings", err)
	})
	g.Go(func() error {
		var err error
		popularity, err = e.store.Popularity(gctx, req.Source, ids)
		return StoreError("load popularity", err)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, Candidate{
			StoryID:   id,
			Embedding: e.validVector(id, embeddings[id]),
		})
	}

	scored := e.scorer.Score(aff, candidates, popularity)
	SortCandidates(scored)
	// The pool never shrinks below k.
	if limit := max(e.config.MaxCandidates, req.K); len(scored) > limit {
		scored = scored[:limit]
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	return e.diversifier.Diversify(ctx, scored, req.K), len(candidates), nil
}

// popular ranks all non-interacted stories by popularity alone.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) popular(ctx context.Context, req Request, state *requestState) ([]Candidate, int, error) {
	if err := e.loadHistory(ctx, req.UserID, state); err != nil {
		return nil, 0, err
	}

	ids, err := e.store.StoryIDsExcluding(ctx, historyIDs(state.history))
	if err != nil {
		return nil, 0, StoreError("list candidate stories", err)
	}
	if len(ids) == 0 {
		return []Candidate{}, 0, nil
	}

	counts, err := e.store.Popularity(ctx, req.Source, ids)
	if err != nil {
		return nil, 0, StoreError("load popularity", err)
	}

	ranked := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		pop := float64(counts[id]) / PopularityDivisor
		ranked = append(ranked, Candidate{StoryID: id, Popularity: pop, Score: pop})
	}
	SortCandidates(ranked)
	if len(ranked) > req.K {
		ranked = ranked[:req.K]
	}
	return ranked, len(ids), nil
}

// loadHistory fetches the user's history once per request.
// A missing user is not an error; it yields an empty history.
func (e *Engine) loadHistory(ctx context.Context, userID string, state *requestState) error {
	if state.historyLoaded {
		return nil
	}

	history, err := e.store.ReadHistory(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		history = nil
	case err != nil:
		return StoreError("load read history", err)
	}

	for i := range history {
		history[i].Embedding = e.validVector(history[i].StoryID, history[i].Embedding)
	}

	state.history = history
	state.historyLoaded = true
	return nil
}

// fillMissingEmbeddings embeds history stories that have no stored vector
// when EmbedMissing is enabled. The input slice is not modified.
func (e *Engine) fillMissingEmbeddings(ctx context.Context, history []HistoryEntry) ([]HistoryEntry, error) {
	if !e.config.EmbedMissing {
		return history, nil
	}

	filled := make([]HistoryEntry, len(history))
	copy(filled, history)

	embedded := make(map[string][]float32)
	for i := range filled {
		if filled[i].Embedding != nil {
			continue
		}
		id := filled[i].StoryID
		if vec, ok := embedded[id]; ok {
			filled[i].Embedding = vec
			continue
		}

		text, err := e.texts.StoryText(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, StoreError("load story text", err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		vec, err := EmbedWithRetry(ctx, e.embedder, text, e.config.RetryDelay)
		if err != nil {
			if errors.Is(err, ErrModelUnavailable) {
				return nil, err
			}
			e.logger.Warn().Err(err).Str("story_id", id).Msg("failed to embed story, skipping")
			continue
		}
		vec = e.validVector(id, vec)
		embedded[id] = vec
		filled[i].Embedding = vec
	}
	return filled, nil
}

// hydrate loads full story records and restores ranked order.
// Stories that disappeared between ranking and hydration are dropped.
func (e *Engine) hydrate(ctx context.Context, ranked []Candidate) ([]Recommendation, error) {
	if len(ranked) == 0 {
		return []Recommendation{}, nil
	}

	ids := make([]string, len(ranked))
	for i := range ranked {
		ids[i] = ranked[i].StoryID
	}

	stories, err := e.store.Stories(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("recommend: %w", ctx.Err())
		}
		return nil, StoreError("hydrate stories", err)
	}

	byID := make(map[string]Story, len(stories))
	for i := range stories {
		byID[stories[i].ID] = stories[i]
	}

	items := make([]Recommendation, 0, len(ranked))
	for i := range ranked {
		story, ok := byID[ranked[i].StoryID]
		if !ok {
			e.logger.Warn().Str("story_id", ranked[i].StoryID).Msg("ranked story missing during hydration")
			continue
		}
		items = append(items, Recommendation{
			Story:      story,
			Score:      ranked[i].Score,
			Similarity: ranked[i].Similarity,
			Popularity: ranked[i].Popularity,
		})
	}
	return items, nil
}

// validVector returns v if it has the configured dimensionality, nil otherwise.
func (e *Engine) validVector(storyID string, v []float32) []float32 {
	if v == nil {
		return nil
	}
	if len(v) != e.config.Dimensions {
		e.logger.Warn().
			Str("story_id", storyID).
			Int("length", len(v)).
			Int("expected", e.config.Dimensions).
			Msg("ignoring embedding with unexpected dimensions")
		return nil
	}
	return v
}

// historyIDs returns the distinct story IDs in a history.
func historyIDs(history []HistoryEntry) []string {
	seen := make(map[string]struct{}, len(history))
	ids := make([]string, 0, len(history))
	for i := range history {
		if _, ok := seen[history[i].StoryID]; ok {
			continue
		}
		seen[history[i].StoryID] = struct{}{}
		ids = append(ids, history[i].StoryID)
	}
	return ids
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Requests  int64 `json:"requests"`
	Fallbacks int64 `json:"fallbacks"`
	Errors    int64 `json:"errors"`
}

// GetStats returns the engine counters.
func (e *Engine) GetStats() Stats {
	return Stats{
		Requests:  e.requestCount.Load(),
		Fallbacks: e.fallbackCount.Load(),
		Errors:    e.errorCount.Load(),
	}
}

// GetConfig returns a copy of the engine configuration.
func (e *Engine) GetConfig() *Config {
	return e.config.Clone()
}

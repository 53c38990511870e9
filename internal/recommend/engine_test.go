// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockStore implements Store and TextSource for testing.
type mockStore struct {
	mu         sync.Mutex
	history    map[string][]HistoryEntry
	stories    map[string]Story
	embeddings map[string][]float32
	texts      map[string]string

	historyErr    error
	listErr       error
	embeddingsErr error
	popularityErr error
	storiesErr    error

	// embeddingsDelay blocks Embeddings until it elapses or ctx is done.
	embeddingsDelay time.Duration

	// hiddenOnHydrate simulates stories deleted between ranking and hydration.
	hiddenOnHydrate map[string]bool

	lastExclude []string
}

func newMockStore() *mockStore {
	return &mockStore{
		history:         make(map[string][]HistoryEntry),
		stories:         make(map[string]Story),
		embeddings:      make(map[string][]float32),
		texts:           make(map[string]string),
		hiddenOnHydrate: make(map[string]bool),
	}
}

func (m *mockStore) addStory(id string, reads, likes int64, emb []float32) {
	m.stories[id] = Story{ID: id, Title: "Story " + id, ReadCount: reads, LikesCount: likes}
	if emb != nil {
		m.embeddings[id] = emb
	}
}

func (m *mockStore) ReadHistory(ctx context.Context, userID string) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	h, ok := m.history[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]HistoryEntry, len(h))
	copy(out, h)
	return out, nil
}

func (m *mockStore) StoryIDsExcluding(ctx context.Context, exclude []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	m.lastExclude = append([]string(nil), exclude...)
	m.mu.Unlock()

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	ids := make([]string, 0, len(m.stories))
	for id := range m.stories {
		if !skip[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockStore) Embeddings(ctx context.Context, storyIDs []string) (map[string][]float32, error) {
	if m.embeddingsDelay > 0 {
		select {
		case <-time.After(m.embeddingsDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.embeddingsErr != nil {
		return nil, m.embeddingsErr
	}
	out := make(map[string][]float32, len(storyIDs))
	for _, id := range storyIDs {
		if v, ok := m.embeddings[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *mockStore) Popularity(ctx context.Context, source PopularitySource, storyIDs []string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.popularityErr != nil {
		return nil, m.popularityErr
	}
	out := make(map[string]int64, len(storyIDs))
	for _, id := range storyIDs {
		s := m.stories[id]
		if source == PopularityLikes {
			out[id] = s.LikesCount
		} else {
			out[id] = s.ReadCount
		}
	}
	return out, nil
}

func (m *mockStore) Stories(ctx context.Context, storyIDs []string) ([]Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.storiesErr != nil {
		return nil, m.storiesErr
	}
	// Reverse order so callers cannot rely on store ordering.
	out := make([]Story, 0, len(storyIDs))
	for i := len(storyIDs) - 1; i >= 0; i-- {
		id := storyIDs[i]
		if m.hiddenOnHydrate[id] {
			continue
		}
		if s, ok := m.stories[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) StoryText(ctx context.Context, storyID string) (string, error) {
	t, ok := m.texts[storyID]
	if !ok {
		return "", ErrNotFound
	}
	return t, nil
}

// mockAffinity scores candidates from a fixed table.
type mockAffinity struct {
	scores map[string]float64
}

func (a *mockAffinity) Similarity(c *Candidate) (float64, bool) {
	s, ok := a.scores[c.StoryID]
	return s, ok
}

// mockModel implements AffinityModel for testing.
type mockModel struct {
	aff     *mockAffinity
	ok      bool
	err     error
	fitCall atomic.Int32
	lastIn  AffinityInput
	mu      sync.Mutex
}

func (m *mockModel) Name() string { return "mock" }

func (m *mockModel) Fit(ctx context.Context, in AffinityInput) (Affinity, bool, error) {
	m.fitCall.Add(1)
	m.mu.Lock()
	m.lastIn = in
	m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	if len(in.History) == 0 {
		return nil, false, nil
	}
	return m.aff, m.ok, nil
}

// mockScorer applies the production blend without depending on algorithms.
type mockScorer struct{}

func (mockScorer) Score(aff Affinity, candidates []Candidate, popularity map[string]int64) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		sim, ok := aff.Similarity(&c)
		if !ok {
			continue
		}
		c.Similarity = sim
		c.Popularity = float64(popularity[c.StoryID]) / PopularityDivisor
		c.Score = SimilarityWeight*c.Similarity + PopularityWeight*c.Popularity
		out = append(out, c)
	}
	return out
}

// mockDiversifier truncates to k and records the pool size it received.
type mockDiversifier struct {
	lastPool atomic.Int32
}

func (d *mockDiversifier) Name() string { return "truncate" }

func (d *mockDiversifier) Diversify(_ context.Context, ranked []Candidate, k int) []Candidate {
	d.lastPool.Store(int32(len(ranked)))
	if len(ranked) > k {
		return ranked[:k]
	}
	return ranked
}

// mockEmbedder fails with errs in order, then succeeds.
type mockEmbedder struct {
	errs  []error
	calls atomic.Int32
	dims  int
}

func (e *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	n := int(e.calls.Add(1))
	if n <= len(e.errs) && e.errs[n-1] != nil {
		return nil, e.errs[n-1]
	}
	v := make([]float32, e.dims)
	v[0] = 1
	return v, nil
}

func (e *mockEmbedder) Dimensions() int { return e.dims }

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Dimensions = 2
	cfg.RetryDelay = time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

func newTestEngine(t *testing.T, cfg *Config, store Store, model AffinityModel, opts ...Option) (*Engine, *mockDiversifier) {
	t.Helper()
	div := &mockDiversifier{}
	all := append([]Option{
		WithAffinityModel(model),
		WithScorer(mockScorer{}),
		WithDiversifier(div),
	}, opts...)
	engine, err := NewEngine(cfg, store, zerolog.Nop(), all...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine, div
}

// seededStore has four stories; u1 has read s1.
func seededStore() *mockStore {
	store := newMockStore()
	store.addStory("s1", 500, 1, []float32{1, 0})
	store.addStory("s2", 10, 50, []float32{0, 1})
	store.addStory("s3", 90, 5, []float32{1, 1})
	store.addStory("s4", 90, 0, nil)
	store.history["u1"] = []HistoryEntry{{StoryID: "s1", ReadAt: time.Now(), Embedding: []float32{1, 0}}}
	return store
}

func personalModel() *mockModel {
	return &mockModel{
		ok: true,
		aff: &mockAffinity{scores: map[string]float64{
			"s2": 0.9,
			"s3": 0.2,
		}},
	}
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	model := personalModel()
	tests := []struct {
		name    string
		cfg     *Config
		store   Store
		opts    []Option
		wantErr bool
	}{
		{
			name:  "complete",
			cfg:   testConfig(),
			store: newMockStore(),
			opts:  []Option{WithAffinityModel(model), WithScorer(mockScorer{}), WithDiversifier(&mockDiversifier{})},
		},
		{
			name:    "nil store",
			cfg:     testConfig(),
			opts:    []Option{WithAffinityModel(model), WithScorer(mockScorer{}), WithDiversifier(&mockDiversifier{})},
			wantErr: true,
		},
		{
			name:    "missing affinity model",
			cfg:     testConfig(),
			store:   newMockStore(),
			opts:    []Option{WithScorer(mockScorer{}), WithDiversifier(&mockDiversifier{})},
			wantErr: true,
		},
		{
			name:    "missing scorer",
			cfg:     testConfig(),
			store:   newMockStore(),
			opts:    []Option{WithAffinityModel(model), WithDiversifier(&mockDiversifier{})},
			wantErr: true,
		},
		{
			name:    "missing diversifier",
			cfg:     testConfig(),
			store:   newMockStore(),
			opts:    []Option{WithAffinityModel(model), WithScorer(mockScorer{})},
			wantErr: true,
		},
		{
			name:    "invalid config",
			cfg:     &Config{},
			store:   newMockStore(),
			opts:    []Option{WithAffinityModel(model), WithScorer(mockScorer{}), WithDiversifier(&mockDiversifier{})},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewEngine(tt.cfg, tt.store, zerolog.Nop(), tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEngine() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewEngine_EmbedMissingWithoutEmbedder(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.EmbedMissing = true
	engine, _ := newTestEngine(t, cfg, newMockStore(), personalModel())

	if engine.GetConfig().EmbedMissing {
		t.Error("EmbedMissing should be disabled when no embedder is configured")
	}
	if !cfg.EmbedMissing {
		t.Error("caller config must not be mutated")
	}
}

func TestEngine_Recommend_InvalidArgument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  Request
	}{
		{"empty user", Request{UserID: "", K: 5}},
		{"whitespace user", Request{UserID: "   ", K: 5}},
		{"zero k", Request{UserID: "u1", K: 0}},
		{"negative k", Request{UserID: "u1", K: -3}},
		{"unknown source", Request{UserID: "u1", K: 5, Source: "shares"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := seededStore()
			model := personalModel()
			engine, _ := newTestEngine(t, testConfig(), store, model)

			_, err := engine.Recommend(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Recommend() error = %v, want ErrInvalidArgument", err)
			}
			if model.fitCall.Load() != 0 {
				t.Error("invalid request must not reach the affinity model")
			}
		})
	}
}

func TestEngine_Recommend_Personalized(t *testing.T) {
	t.Parallel()

	store := seededStore()
	engine, _ := newTestEngine(t, testConfig(), store, personalModel())

	resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	// s2: 0.7*0.9 + 0.3*0.10 = 0.66; s3: 0.7*0.2 + 0.3*0.90 = 0.41.
	// s4 has no affinity and is dropped; s1 was read.
	got := resp.StoryIDs()
	want := []string{"s2", "s3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("StoryIDs() = %v, want %v", got, want)
	}

	if resp.Metadata.Strategy != StrategyPersonalized {
		t.Errorf("Strategy = %q, want %q", resp.Metadata.Strategy, StrategyPersonalized)
	}
	if resp.Metadata.FallbackReason != "" {
		t.Errorf("FallbackReason = %q, want empty", resp.Metadata.FallbackReason)
	}
	if resp.Metadata.Affinity != "mock" || resp.Metadata.Diversifier != "truncate" {
		t.Errorf("metadata components = %q/%q", resp.Metadata.Affinity, resp.Metadata.Diversifier)
	}
	if resp.Metadata.PopularitySource != PopularityReads {
		t.Errorf("PopularitySource = %q, want reads", resp.Metadata.PopularitySource)
	}
	if resp.Metadata.RequestID == "" {
		t.Error("RequestID should be generated")
	}
	if resp.Metadata.TotalCandidates != 3 {
		t.Errorf("TotalCandidates = %d, want 3", resp.Metadata.TotalCandidates)
	}
	if resp.Items[0].Title != "Story s2" {
		t.Errorf("Items[0] not hydrated: %+v", resp.Items[0].Story)
	}
	if diff := resp.Items[0].Score - 0.66; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Items[0].Score = %f, want 0.66", resp.Items[0].Score)
	}
	if fmt.Sprint(store.lastExclude) != "[s1]" {
		t.Errorf("excluded = %v, want [s1]", store.lastExclude)
	}
}

func TestEngine_Recommend_LikesSource(t *testing.T) {
	t.Parallel()

	store := seededStore()
	model := &mockModel{ok: true, aff: &mockAffinity{scores: map[string]float64{"s2": 0.1, "s3": 0.2}}}
	engine, _ := newTestEngine(t, testConfig(), store, model)

	resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 2, Source: PopularityLikes})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	// s2: 0.07 + 0.15 = 0.22; s3: 0.14 + 0.015 = 0.155.
	if got := resp.StoryIDs(); fmt.Sprint(got) != "[s2 s3]" {
		t.Errorf("StoryIDs() = %v, want [s2 s3]", got)
	}
	if resp.Metadata.PopularitySource != PopularityLikes {
		t.Errorf("PopularitySource = %q, want likes", resp.Metadata.PopularitySource)
	}
}

func TestEngine_Recommend_NoProfileFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		userID string
		model  *mockModel
		source PopularitySource
		want   []string
	}{
		{
			name:   "unknown user",
			userID: "nobody",
			model:  personalModel(),
			// s1=500, then s3/s4 tie at 90 broken by id, then s2.
			want: []string{"s1", "s3", "s4"},
		},
		{
			name:   "model finds no signal",
			userID: "u1",
			model:  &mockModel{ok: false},
			want:   []string{"s3", "s4", "s2"},
		},
		{
			name:   "unknown user by likes",
			userID: "nobody",
			model:  personalModel(),
			source: PopularityLikes,
			want:   []string{"s2", "s3", "s1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			engine, _ := newTestEngine(t, testConfig(), seededStore(), tt.model)

			resp, err := engine.Recommend(context.Background(), Request{UserID: tt.userID, K: 3, Source: tt.source})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if got := resp.StoryIDs(); fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("StoryIDs() = %v, want %v", got, tt.want)
			}
			if resp.Metadata.Strategy != StrategyPopularity {
				t.Errorf("Strategy = %q, want popularity", resp.Metadata.Strategy)
			}
			if resp.Metadata.FallbackReason != FallbackNoProfile {
				t.Errorf("FallbackReason = %q, want %q", resp.Metadata.FallbackReason, FallbackNoProfile)
			}
			if resp.Metadata.Diversifier != "" {
				t.Error("popularity path must not report a diversifier")
			}
			for _, item := range resp.Items {
				if item.Similarity != 0 {
					t.Errorf("item %s Similarity = %f, want 0", item.ID, item.Similarity)
				}
			}
		})
	}

	t.Run("fallback counter", func(t *testing.T) {
		t.Parallel()
		engine, _ := newTestEngine(t, testConfig(), seededStore(), personalModel())
		if _, err := engine.Recommend(context.Background(), Request{UserID: "nobody", K: 1}); err != nil {
			t.Fatal(err)
		}
		if stats := engine.GetStats(); stats.Fallbacks != 1 || stats.Requests != 1 {
			t.Errorf("GetStats() = %+v", stats)
		}
	})
}

func TestEngine_Recommend_StoreUnavailable(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	tests := []struct {
		name   string
		userID string
		setup  func(*mockStore)
	}{
		{"history", "u1", func(s *mockStore) { s.historyErr = boom }},
		{"candidate listing", "u1", func(s *mockStore) { s.listErr = boom }},
		{"embeddings", "u1", func(s *mockStore) { s.embeddingsErr = boom }},
		{"popularity", "u1", func(s *mockStore) { s.popularityErr = boom }},
		{"popularity during fallback", "nobody", func(s *mockStore) { s.popularityErr = boom }},
		{"hydration", "u1", func(s *mockStore) { s.storiesErr = boom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := seededStore()
			tt.setup(store)
			engine, _ := newTestEngine(t, testConfig(), store, personalModel())

			resp, err := engine.Recommend(context.Background(), Request{UserID: tt.userID, K: 2})
			if !errors.Is(err, ErrStoreUnavailable) {
				t.Fatalf("Recommend() error = %v, want ErrStoreUnavailable", err)
			}
			if !errors.Is(err, boom) {
				t.Errorf("error should wrap the cause: %v", err)
			}
			if resp != nil {
				t.Error("response should be nil on error")
			}
		})
	}
}

func TestEngine_Recommend_ModelUnavailable(t *testing.T) {
	t.Parallel()

	unavailable := fmt.Errorf("warming up: %w", ErrModelUnavailable)

	tests := []struct {
		name         string
		errs         []error
		wantStrategy Strategy
		wantReason   string
		wantCalls    int32
	}{
		{
			name:         "recovers on retry",
			errs:         []error{unavailable},
			wantStrategy: StrategyPersonalized,
			wantCalls:    2,
		},
		{
			name:         "unavailable twice degrades",
			errs:         []error{unavailable, unavailable},
			wantStrategy: StrategyPopularity,
			wantReason:   FallbackModelUnavailable,
			wantCalls:    2,
		},
		{
			name:         "other errors are not retried",
			errs:         []error{errors.New("bad input")},
			wantStrategy: StrategyPersonalized,
			wantCalls:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := seededStore()
			store.history["u1"] = []HistoryEntry{{StoryID: "s4", ReadAt: time.Now()}}
			store.texts["s4"] = "a story about ships"

			cfg := testConfig()
			cfg.EmbedMissing = true
			emb := &mockEmbedder{errs: tt.errs, dims: 2}
			model := personalModel()
			engine, _ := newTestEngine(t, cfg, store, model, WithEmbedder(emb, store))

			resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 2})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if resp.Metadata.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %q, want %q", resp.Metadata.Strategy, tt.wantStrategy)
			}
			if resp.Metadata.FallbackReason != tt.wantReason {
				t.Errorf("FallbackReason = %q, want %q", resp.Metadata.FallbackReason, tt.wantReason)
			}
			if got := emb.calls.Load(); got != tt.wantCalls {
				t.Errorf("Embed calls = %d, want %d", got, tt.wantCalls)
			}
			for _, id := range resp.StoryIDs() {
				if id == "s4" {
					t.Error("read story s4 must be excluded")
				}
			}
		})
	}

	t.Run("embedded history reaches the model", func(t *testing.T) {
		t.Parallel()
		store := seededStore()
		store.history["u1"] = []HistoryEntry{{StoryID: "s4", ReadAt: time.Now()}}
		store.texts["s4"] = "text"

		cfg := testConfig()
		cfg.EmbedMissing = true
		model := personalModel()
		engine, _ := newTestEngine(t, cfg, store, model, WithEmbedder(&mockEmbedder{dims: 2}, store))

		if _, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 1}); err != nil {
			t.Fatal(err)
		}
		model.mu.Lock()
		defer model.mu.Unlock()
		if len(model.lastIn.History) != 1 || model.lastIn.History[0].Embedding == nil {
			t.Errorf("history passed to model = %+v", model.lastIn.History)
		}
		if store.history["u1"][0].Embedding != nil {
			t.Error("stored history must not be mutated")
		}
	})
}

func TestEngine_Recommend_Timeout(t *testing.T) {
	t.Parallel()

	store := seededStore()
	store.embeddingsDelay = time.Second

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	engine, _ := newTestEngine(t, cfg, store, personalModel())

	start := time.Now()
	resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 2})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Recommend() took %v, expected the timeout to cut it short", elapsed)
	}
	if resp.Metadata.Strategy != StrategyPopularity || resp.Metadata.FallbackReason != FallbackTimeout {
		t.Errorf("metadata = %+v, want popularity/timeout", resp.Metadata)
	}
	// Popularity over s2, s3, s4 (s1 read): s3/s4 tie at 90.
	if got := resp.StoryIDs(); fmt.Sprint(got) != "[s3 s4]" {
		t.Errorf("StoryIDs() = %v, want [s3 s4]", got)
	}
}

func TestEngine_Recommend_Cancelled(t *testing.T) {
	t.Parallel()

	t.Run("before start", func(t *testing.T) {
		t.Parallel()
		engine, _ := newTestEngine(t, testConfig(), seededStore(), personalModel())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.Recommend(ctx, Request{UserID: "u1", K: 2})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Recommend() error = %v, want context.Canceled", err)
		}
		if errors.Is(err, ErrStoreUnavailable) {
			t.Error("cancellation must not be reported as a store failure")
		}
	})

	t.Run("during ranking", func(t *testing.T) {
		t.Parallel()
		store := seededStore()
		store.embeddingsDelay = time.Second
		engine, _ := newTestEngine(t, testConfig(), store, personalModel())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := engine.Recommend(ctx, Request{UserID: "u1", K: 2})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Recommend() error = %v, want context.DeadlineExceeded", err)
		}
	})
}

func TestEngine_Recommend_CandidateCap(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	scores := make(map[string]float64)
	for i := 0; i < 80; i++ {
		id := fmt.Sprintf("c%02d", i)
		store.addStory(id, int64(i), 0, []float32{1, 0})
		scores[id] = float64(i) / 100
	}
	store.history["u1"] = []HistoryEntry{{StoryID: "gone", ReadAt: time.Now()}}

	cfg := testConfig()
	cfg.MaxCandidates = 25
	engine, div := newTestEngine(t, cfg, store, &mockModel{ok: true, aff: &mockAffinity{scores: scores}})

	resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 5})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if got := div.lastPool.Load(); got != 25 {
		t.Errorf("diversifier pool = %d, want 25", got)
	}
	if got := resp.StoryIDs(); got[0] != "c79" {
		t.Errorf("top item = %s, want c79", got[0])
	}
	if resp.Metadata.TotalCandidates != 80 {
		t.Errorf("TotalCandidates = %d, want 80", resp.Metadata.TotalCandidates)
	}
}

func TestEngine_Recommend_KAboveCandidateCap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		k        int
		wantLen  int
		wantPool int32
	}{
		{"k below cap", 10, 10, 25},
		{"k above cap", 60, 60, 60},
		{"k above eligible", 100, 80, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMockStore()
			scores := make(map[string]float64)
			for i := 0; i < 80; i++ {
				id := fmt.Sprintf("c%02d", i)
				store.addStory(id, int64(i), 0, []float32{1, 0})
				scores[id] = float64(i) / 100
			}
			store.history["u1"] = []HistoryEntry{{StoryID: "gone", ReadAt: time.Now()}}

			cfg := testConfig()
			cfg.MaxCandidates = 25
			engine, div := newTestEngine(t, cfg, store, &mockModel{ok: true, aff: &mockAffinity{scores: scores}})

			resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: tt.k})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if len(resp.Items) != tt.wantLen {
				t.Errorf("len(Items) = %d, want %d", len(resp.Items), tt.wantLen)
			}
			if got := div.lastPool.Load(); got != tt.wantPool {
				t.Errorf("diversifier pool = %d, want %d", got, tt.wantPool)
			}
			if resp.Metadata.Strategy != StrategyPersonalized {
				t.Errorf("Strategy = %q, want personalized", resp.Metadata.Strategy)
			}
		})
	}
}

func TestEngine_Recommend_Hydration(t *testing.T) {
	t.Parallel()

	t.Run("drops stories that vanished", func(t *testing.T) {
		t.Parallel()
		store := seededStore()
		store.hiddenOnHydrate["s2"] = true
		engine, _ := newTestEngine(t, testConfig(), store, personalModel())

		resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 2})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if got := resp.StoryIDs(); fmt.Sprint(got) != "[s3]" {
			t.Errorf("StoryIDs() = %v, want [s3]", got)
		}
	})

	t.Run("empty pool", func(t *testing.T) {
		t.Parallel()
		store := newMockStore()
		store.addStory("only", 1, 0, []float32{1, 0})
		store.history["u1"] = []HistoryEntry{{StoryID: "only", ReadAt: time.Now(), Embedding: []float32{1, 0}}}
		engine, _ := newTestEngine(t, testConfig(), store, personalModel())

		resp, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 3})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if resp.Items == nil || len(resp.Items) != 0 {
			t.Errorf("Items = %v, want empty non-nil slice", resp.Items)
		}
	})
}

func TestEngine_Recommend_ClampsK(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	for i := 0; i < 10; i++ {
		store.addStory(fmt.Sprintf("p%d", i), int64(i), 0, nil)
	}

	cfg := testConfig()
	cfg.Limits.DefaultK = 2
	cfg.Limits.MaxK = 4
	engine, _ := newTestEngine(t, cfg, store, personalModel())

	resp, err := engine.Recommend(context.Background(), Request{UserID: "nobody", K: 50})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(resp.Items) != 4 {
		t.Errorf("len(Items) = %d, want 4", len(resp.Items))
	}
}

func TestEngine_Recommend_IgnoresWrongDimensions(t *testing.T) {
	t.Parallel()

	store := seededStore()
	store.embeddings["s2"] = []float32{1, 0, 0}
	store.history["u1"] = []HistoryEntry{{StoryID: "s1", ReadAt: time.Now(), Embedding: []float32{1}}}

	var seen []Candidate
	var mu sync.Mutex
	model := &mockModel{ok: true, aff: &mockAffinity{scores: map[string]float64{"s2": 0.5, "s3": 0.5}}}
	engine, _ := newTestEngine(t, testConfig(), store, model,
		WithScorer(scorerFunc(func(aff Affinity, cs []Candidate, pop map[string]int64) []Candidate {
			mu.Lock()
			seen = append(seen, cs...)
			mu.Unlock()
			return mockScorer{}.Score(aff, cs, pop)
		})))

	if _, err := engine.Recommend(context.Background(), Request{UserID: "u1", K: 2}); err != nil {
		t.Fatal(err)
	}

	model.mu.Lock()
	if model.lastIn.History[0].Embedding != nil {
		t.Error("history embedding with wrong dimensions should be cleared")
	}
	model.mu.Unlock()

	for _, c := range seen {
		if c.StoryID == "s2" && c.Embedding != nil {
			t.Error("candidate embedding with wrong dimensions should be cleared")
		}
		if c.StoryID == "s3" && c.Embedding == nil {
			t.Error("valid candidate embedding should be kept")
		}
	}
}

type scorerFunc func(Affinity, []Candidate, map[string]int64) []Candidate

func (f scorerFunc) Score(aff Affinity, cs []Candidate, pop map[string]int64) []Candidate {
	return f(aff, cs, pop)
}

func TestEngine_Recommend_Concurrent(t *testing.T) {
	t.Parallel()

	store := seededStore()
	engine, _ := newTestEngine(t, testConfig(), store, personalModel())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "u1"
			if i%2 == 0 {
				user = "nobody"
			}
			if _, err := engine.Recommend(context.Background(), Request{UserID: user, K: 2}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Recommend() error = %v", err)
	}
	if got := engine.GetStats().Requests; got != 20 {
		t.Errorf("Requests = %d, want 20", got)
	}
}

func TestEmbedWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("honours cancellation during delay", func(t *testing.T) {
		t.Parallel()
		emb := &mockEmbedder{errs: []error{ErrModelUnavailable}, dims: 2}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := EmbedWithRetry(ctx, emb, "x", time.Minute)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("EmbedWithRetry() error = %v, want deadline exceeded", err)
		}
		if emb.calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", emb.calls.Load())
		}
	})
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantNil       bool
		wantStoreErr  bool
		wantNotFound  bool
		wantCancelled bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "driver error", err: errors.New("driver: bad connection"), wantStoreErr: true},
		{name: "not found passes through", err: ErrNotFound, wantNotFound: true},
		{name: "cancellation passes through", err: context.Canceled, wantCancelled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := StoreError("op", tt.err)
			if (err == nil) != tt.wantNil {
				t.Fatalf("StoreError() = %v, wantNil %v", err, tt.wantNil)
			}
			if errors.Is(err, ErrStoreUnavailable) != tt.wantStoreErr {
				t.Errorf("Is(ErrStoreUnavailable) = %v, want %v", !tt.wantStoreErr, tt.wantStoreErr)
			}
			if errors.Is(err, ErrNotFound) != tt.wantNotFound {
				t.Errorf("Is(ErrNotFound) mismatch for %v", err)
			}
			if errors.Is(err, context.Canceled) != tt.wantCancelled {
				t.Errorf("Is(context.Canceled) mismatch for %v", err)
			}
		})
	}
}

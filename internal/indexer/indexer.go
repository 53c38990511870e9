// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/carlulsoe/stellar-spire/internal/metrics"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/safety"
)

var (
	// ErrContentRejected is returned when the safety gate flags a story.
	ErrContentRejected = errors.New("content rejected by safety policy")

	// ErrNoContent is returned for stories without any chapter text.
	ErrNoContent = fmt.Errorf("%w: story has no content", recommend.ErrInvalidArgument)
)

// Metric trigger labels.
const (
	TriggerReindex  = "reindex"
	TriggerBackfill = "backfill"
)

// Source is the store side of the indexer.
type Source interface {
	recommend.TextSource
	recommend.EmbeddingWriter
	StoriesMissingEmbedding(ctx context.Context, limit int) ([]string, error)
}

// Classifier scores text against the content policy.
type Classifier interface {
	Classify(ctx context.Context, text string) (safety.Verdict, error)
}

// Config controls indexing behavior.
type Config struct {
	// RequireSafe refuses to embed text the classifier flags.
	RequireSafe bool `koanf:"require_safe"`

	// BatchSize is the number of stories fetched per backfill query.
	BatchSize int `koanf:"batch_size" validate:"min=1"`

	// Concurrency bounds parallel embedding calls during backfill.
	Concurrency int `koanf:"concurrency" validate:"min=1"`

	// RetryDelay is the pause before the single retry of an unavailable model.
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// DefaultConfig returns the default indexer configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:   100,
		Concurrency: 4,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Result describes a single reindexed story.
type Result struct {
	StoryID    string    `json:"story_id"`
	Dimensions int       `json:"dimensions"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// Report summarizes a backfill run.
type Report struct {
	Embedded int           `json:"embedded"`
	Rejected int           `json:"rejected"`
	Empty    int           `json:"empty"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Indexer keeps story embeddings in sync with story text.
type Indexer struct {
	src        Source
	embedder   recommend.Embedder
	classifier Classifier
	cfg        Config
	logger     zerolog.Logger

	// serializes backfill runs
	backfillMu sync.Mutex
}

// New creates an indexer. classifier may be nil, in which case the safety
// gate is disabled regardless of RequireSafe.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(src Source, embedder recommend.Embedder, classifier Classifier, cfg Config, logger zerolog.Logger) (*Indexer, error) {
	if src == nil {
		return nil, errors.New("indexer: source is required")
	}
	if embedder == nil {
		return nil, errors.New("indexer: embedder is required")
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	logger = logger.With().Str("component", "indexer").Logger()
	if cfg.RequireSafe && classifier == nil {
		logger.Warn().Msg("require_safe enabled without a classifier, safety gate disabled")
		cfg.RequireSafe = false
	}
	return &Indexer{
		src:        src,
		embedder:   embedder,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Reindex recomputes and stores the embedding of one story from the text of
// all its chapters.
func (ix *Indexer) Reindex(ctx context.Context, storyID string) (*Result, error) {
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return nil, fmt.Errorf("%w: story id is required", recommend.ErrInvalidArgument)
	}

	dims, err := ix.index(ctx, storyID)
	embedded := 0
	if err == nil {
		embedded = 1
	}
	metrics.RecordIndexerRun(TriggerReindex, embedded, err)
	if err != nil {
		return nil, err
	}

	ix.logger.Debug().Str("story_id", storyID).Msg("story embedding updated")
	return &Result{StoryID: storyID, Dimensions: dims, IndexedAt: time.Now()}, nil
}

func (ix *Indexer) index(ctx context.Context, storyID string) (int, error) {
	text, err := ix.src.StoryText(ctx, storyID)
	if err != nil {
		return 0, fmt.Errorf("load text for %s: %w", storyID, err)
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrNoContent
	}

	if ix.cfg.RequireSafe {
		verdict, err := ix.classifier.Classify(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("classify %s: %w", storyID, err)
		}
		if !verdict.IsAcceptable {
			return 0, fmt.Errorf("%w: flagged %s", ErrContentRejected, strings.Join(verdict.Flags, ","))
		}
	}

	vec, err := recommend.EmbedWithRetry(ctx, ix.embedder, text, ix.cfg.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", storyID, err)
	}

	if err := ix.src.UpdateEmbedding(ctx, storyID, vec); err != nil {
		return 0, fmt.Errorf("store embedding for %s: %w", storyID, err)
	}
	return len(vec), nil
}

// Backfill embeds every story that has no stored embedding. Stories that
// are empty or rejected are counted and skipped for the rest of the run.
// The run stops early when the model or the store becomes unavailable.
func (ix *Indexer) Backfill(ctx context.Context) (Report, error) {
	ix.backfillMu.Lock()
	defer ix.backfillMu.Unlock()

	start := time.Now()
	var (
		report Report
		mu     sync.Mutex
	)
	skip := make(map[string]struct{})

	err := func() error {
		for {
			ids, err := ix.src.StoriesMissingEmbedding(ctx, ix.cfg.BatchSize+len(skip))
			if err != nil {
				return fmt.Errorf("list stories missing embeddings: %w", err)
			}
			exhausted := len(ids) < ix.cfg.BatchSize+len(skip)

			pending := ids[:0]
			for _, id := range ids {
				if _, ok := skip[id]; !ok {
					pending = append(pending, id)
				}
			}
			if len(pending) == 0 {
				return nil
			}

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(ix.cfg.Concurrency)
			for _, id := range pending {
				g.Go(func() error {
					_, err := ix.index(gctx, id)

					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						report.Embedded++
						return nil
					case errors.Is(err, ErrContentRejected):
						report.Rejected++
					case errors.Is(err, ErrNoContent):
						report.Empty++
					case errors.Is(err, recommend.ErrModelUnavailable),
						errors.Is(err, recommend.ErrStoreUnavailable),
						errors.Is(err, safety.ErrUnavailable),
						gctx.Err() != nil:
						return err
					default:
						report.Failed++
						ix.logger.Warn().Err(err).Str("story_id", id).Msg("failed to index story")
					}
					skip[id] = struct{}{}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			if exhausted {
				return nil
			}
		}
	}()

	report.Duration = time.Since(start)
	metrics.RecordIndexerRun(TriggerBackfill, report.Embedded, err)

	event := ix.logger.Info()
	if err != nil {
		event = ix.logger.Warn().Err(err)
	}
	event.
		Int("embedded", report.Embedded).
		Int("rejected", report.Rejected).
		Int("empty", report.Empty).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("embedding backfill finished")

	return report, err
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/metrics"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// Config holds Redis connection settings for the popularity counters.
type Config struct {
	Addr      string        `koanf:"addr"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db"`
	KeyPrefix string        `koanf:"key_prefix"`
	Timeout   time.Duration `koanf:"timeout"`
}

// DefaultConfig returns local development settings.
func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:6379",
		KeyPrefix: "stellar-spire:",
		Timeout:   500 * time.Millisecond,
	}
}

// Backing is the authoritative store the counters shadow.
type Backing interface {
	recommend.Store
	RecordRead(ctx context.Context, ev recommend.ReadEvent) error
	ToggleLike(ctx context.Context, userID, storyID string) (bool, int64, error)
}

// client is the subset of redis.Cmdable used here.
type client interface {
	ZMScore(ctx context.Context, key string, members ...string) *redis.FloatSliceCmd
	ZIncrBy(ctx context.Context, key string, increment float64, member string) *redis.FloatCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// warmBatch bounds the members sent per ZADD during warm-up.
const warmBatch = 1000

// PopularityStore serves popularity counters from Redis sorted sets and
// delegates everything else to the backing store. Until Warm has completed,
// or whenever Redis errors, counters are read from the backing store.
type PopularityStore struct {
	recommend.Store
	backing Backing
	rdb     client
	prefix  string
	timeout time.Duration
	logger  zerolog.Logger

	warm   atomic.Bool
	warmMu sync.Mutex

	// mu is held shared by writers across the backing write and the
	// counter update, and exclusively by Warm while it reconciles.
	mu      sync.RWMutex
	warming bool

	pendingMu sync.Mutex
	pending   map[recommend.PopularitySource]map[string]struct{}
}

var _ Backing = (*PopularityStore)(nil)

// Open connects to Redis and wraps the backing store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(ctx context.Context, cfg Config, backing Backing, logger zerolog.Logger) (*PopularityStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redisstore: addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}
	return newPopularityStore(rdb, cfg, backing, logger), nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func newPopularityStore(rdb client, cfg Config, backing Backing, logger zerolog.Logger) *PopularityStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &PopularityStore{
		Store:   backing,
		backing: backing,
		rdb:     rdb,
		prefix:  cfg.KeyPrefix,
		timeout: cfg.Timeout,
		logger:  logger.With().Str("component", "redisstore").Logger(),
	}
}

func (p *PopularityStore) key(source recommend.PopularitySource) string {
	return p.prefix + "popularity:" + string(source)
}

func (p *PopularityStore) warmKey() string {
	return p.prefix + "popularity:warm"
}

// Warmed reports whether counters are being served from Redis.
func (p *PopularityStore) Warmed() bool {
	return p.warm.Load()
}

// Popularity returns counters from Redis once warm, falling back to the
// backing store on any Redis error.
func (p *PopularityStore) Popularity(ctx context.Context, source recommend.PopularitySource, storyIDs []string) (map[string]int64, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown popularity source %q", recommend.ErrInvalidArgument, source)
	}
	if !p.warm.Load() || len(storyIDs) == 0 {
		metrics.CounterOperations.WithLabelValues("read", "miss").Inc()
		return p.backing.Popularity(ctx, source, storyIDs)
	}

	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	scores, err := p.rdb.ZMScore(rctx, p.key(source), storyIDs...).Result()
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.CounterOperations.WithLabelValues("read", "error").Inc()
		p.logger.Warn().Err(err).Msg("redis popularity read failed, using backing store")
		return p.backing.Popularity(ctx, source, storyIDs)
	}
	metrics.CounterOperations.WithLabelValues("read", "success").Inc()

	out := make(map[string]int64, len(storyIDs))
	for i, id := range storyIDs {
		if i < len(scores) && scores[i] > 0 {
			out[id] = int64(scores[i])
		}
	}
	return out, nil
}

// RecordRead appends the read to the backing store, then bumps the reads counter.
func (p *PopularityStore) RecordRead(ctx context.Context, ev recommend.ReadEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.backing.RecordRead(ctx, ev); err != nil {
		return err
	}
	p.counterWrite(ctx, "incr_read", recommend.PopularityReads, ev.StoryID, func(rctx context.Context) error {
		return p.rdb.ZIncrBy(rctx, p.key(recommend.PopularityReads), 1, ev.StoryID).Err()
	})
	return nil
}

// ToggleLike toggles the like in the backing store and mirrors the new count.
func (p *PopularityStore) ToggleLike(ctx context.Context, userID, storyID string) (bool, int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	liked, count, err := p.backing.ToggleLike(ctx, userID, storyID)
	if err != nil {
		return false, 0, err
	}
	p.counterWrite(ctx, "set_likes", recommend.PopularityLikes, storyID, func(rctx context.Context) error {
		return p.rdb.ZAdd(rctx, p.key(recommend.PopularityLikes), redis.Z{Score: float64(count), Member: storyID}).Err()
	})
	return liked, count, nil
}

// counterWrite applies a counter update. Updates that arrive while Warm is
// rebuilding are queued for reconciliation. A failed update drops the store
// out of warm mode so reads go to the backing store until the next Warm.
// Callers hold p.mu shared.
func (p *PopularityStore) counterWrite(ctx context.Context, op string, source recommend.PopularitySource, storyID string, fn func(context.Context) error) {
	if p.warming {
		p.pendingMu.Lock()
		if p.pending[source] == nil {
			p.pending[source] = make(map[string]struct{})
		}
		p.pending[source][storyID] = struct{}{}
		p.pendingMu.Unlock()
		return
	}
	if !p.warm.Load() {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := fn(rctx); err != nil {
		p.warm.Store(false)
		metrics.CounterOperations.WithLabelValues(op, "error").Inc()
		p.logger.Warn().Err(err).Str("operation", op).Msg("redis counter update failed, serving from backing store")
		return
	}
	metrics.CounterOperations.WithLabelValues(op, "success").Inc()
}

// Warm rebuilds both sorted sets from the backing store and switches reads
// to Redis. Counter writes made during the rebuild are re-read from the
// backing store before reads switch over.
func (p *PopularityStore) Warm(ctx context.Context) error {
	p.warmMu.Lock()
	defer p.warmMu.Unlock()

	start := time.Now()
	p.mu.Lock()
	p.warm.Store(false)
	p.warming = true
	p.pending = make(map[recommend.PopularitySource]map[string]struct{})
	p.mu.Unlock()
	defer p.endWarming()

	ids, err := p.backing.StoryIDsExcluding(ctx, nil)
	if err != nil {
		return fmt.Errorf("redisstore: list stories: %w", err)
	}

	for _, source := range []recommend.PopularitySource{recommend.PopularityReads, recommend.PopularityLikes} {
		counts, err := p.backing.Popularity(ctx, source, ids)
		if err != nil {
			return fmt.Errorf("redisstore: load %s counters: %w", source, err)
		}
		if err := p.replace(ctx, p.key(source), ids, counts); err != nil {
			metrics.CounterOperations.WithLabelValues("warm", "error").Inc()
			return fmt.Errorf("redisstore: write %s counters: %w", source, err)
		}
	}

	if err := p.rdb.Set(ctx, p.warmKey(), time.Now().Unix(), 0).Err(); err != nil {
		metrics.CounterOperations.WithLabelValues("warm", "error").Inc()
		return fmt.Errorf("redisstore: mark warm: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	reconciled, err := p.reconcile(ctx)
	if err != nil {
		metrics.CounterOperations.WithLabelValues("warm", "error").Inc()
		return err
	}
	p.warming = false
	p.warm.Store(true)

	metrics.CounterOperations.WithLabelValues("warm", "success").Inc()
	p.logger.Info().
		Int("stories", len(ids)).
		Int("reconciled", reconciled).
		Dur("duration", time.Since(start)).
		Msg("popularity counters warmed")
	return nil
}

func (p *PopularityStore) endWarming() {
	p.mu.Lock()
	p.warming = false
	p.pending = nil
	p.mu.Unlock()
}

// reconcile overwrites the counters of stories written during the rebuild
// with their current backing values. Callers hold p.mu exclusively.
func (p *PopularityStore) reconcile(ctx context.Context) (int, error) {
	n := 0
	for source, set := range p.pending {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		counts, err := p.backing.Popularity(ctx, source, ids)
		if err != nil {
			return n, fmt.Errorf("redisstore: reload %s counters: %w", source, err)
		}
		members := make([]redis.Z, 0, len(ids))
		for _, id := range ids {
			members = append(members, redis.Z{Score: float64(counts[id]), Member: id})
		}
		if err := p.rdb.ZAdd(ctx, p.key(source), members...).Err(); err != nil {
			return n, fmt.Errorf("redisstore: write %s counters: %w", source, err)
		}
		n += len(ids)
	}
	return n, nil
}

func (p *PopularityStore) replace(ctx context.Context, key string, ids []string, counts map[string]int64) error {
	if err := p.rdb.Del(ctx, key).Err(); err != nil {
		return err
	}
	members := make([]redis.Z, 0, warmBatch)
	flush := func() error {
		if len(members) == 0 {
			return nil
		}
		err := p.rdb.ZAdd(ctx, key, members...).Err()
		members = members[:0]
		return err
	}
	for _, id := range ids {
		members = append(members, redis.Z{Score: float64(counts[id]), Member: id})
		if len(members) == warmBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Ping checks Redis connectivity.
func (p *PopularityStore) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close closes the Redis client. The backing store is left open.
func (p *PopularityStore) Close() error {
	return p.rdb.Close()
}

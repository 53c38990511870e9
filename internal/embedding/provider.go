// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/carlulsoe/stellar-spire/internal/breaker"
	"github.com/carlulsoe/stellar-spire/internal/cache"
	"github.com/carlulsoe/stellar-spire/internal/metrics"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// Config configures the embedding provider.
type Config struct {
	// Backend is "openai" (including OpenAI-compatible servers) or "gemini".
	Backend string `json:"backend"`
	Model   string `json:"model"`
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`

	// Dimensions is the expected vector length. Responses of any other
	// length are rejected.
	Dimensions int `json:"dimensions"`

	// RequestDimensions asks the backend to truncate to Dimensions
	// (OpenAI text-embedding-3 models only).
	RequestDimensions bool `json:"request_dimensions"`

	// Timeout bounds a single backend call.
	Timeout time.Duration `json:"timeout"`

	// RateLimit is the sustained request rate per second. 0 disables limiting.
	RateLimit float64 `json:"rate_limit"`
	Burst     int     `json:"burst"`

	CacheSize int           `json:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl"`

	// CachePath enables the persistent Badger cache when non-empty.
	CachePath string `json:"cache_path"`

	// ProbeOnOpen embeds a short probe text during Open to verify the model
	// and its dimensions.
	ProbeOnOpen bool `json:"probe_on_open"`
}

// DefaultConfig targets a local text-embeddings-inference server running
// bge-large-en-v1.5 through its OpenAI-compatible endpoint.
func DefaultConfig() *Config {
	return &Config{
		Backend:     BackendOpenAI,
		Model:       "BAAI/bge-large-en-v1.5",
		BaseURL:     "http://localhost:8080/v1",
		Dimensions:  1024,
		Timeout:     10 * time.Second,
		RateLimit:   20,
		Burst:       40,
		CacheSize:   10000,
		CacheTTL:    24 * time.Hour,
		ProbeOnOpen: true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Backend != BackendOpenAI && c.Backend != BackendGemini {
		return fmt.Errorf("embedding: backend must be %q or %q, got %q", BackendOpenAI, BackendGemini, c.Backend)
	}
	if c.Model == "" {
		return errors.New("embedding: model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive, got %d", c.Dimensions)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("embedding: timeout must be positive, got %s", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("embedding: rate_limit must be non-negative, got %v", c.RateLimit)
	}
	return nil
}

// Option customizes Open.
type Option func(*Provider)

// WithBackend replaces the configured backend.
func WithBackend(b Backend) Option {
	return func(p *Provider) { p.backend = b }
}

// WithBreakerConfig overrides the circuit breaker settings.
func WithBreakerConfig(cfg breaker.Config) Option {
	return func(p *Provider) { p.breakerCfg = &cfg }
}

// Provider is an explicitly opened handle on an embedding model.
// It implements recommend.Embedder and is safe for concurrent use.
type Provider struct {
	cfg     Config
	logger  zerolog.Logger
	backend Backend

	breakerCfg *breaker.Config
	breaker    *breaker.Breaker[[]float32]
	limiter    *rate.Limiter
	memory     *cache.LRU[[]float32]
	disk       *diskCache

	ready     atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ recommend.Embedder = (*Provider)(nil)

// Open validates cfg, connects the backend and optionally probes it.
// A probe that finds the model temporarily unavailable is logged and the
// provider is returned not ready; it becomes ready on the first successful call.
func Open(ctx context.Context, cfg *Config, logger zerolog.Logger, opts ...Option) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:    *cfg,
		logger: logger.With().Str("component", "embedding").Str("backend", cfg.Backend).Str("model", cfg.Model).Logger(),
		memory: cache.NewLRU[[]float32](cfg.CacheSize, cfg.CacheTTL),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.backend == nil {
		b, err := newBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.backend = b
	}

	bcfg := breaker.DefaultConfig("embedding_" + p.backend.Name())
	if p.breakerCfg != nil {
		bcfg = *p.breakerCfg
	}
	p.breaker = breaker.New[[]float32](bcfg, func(err error) bool {
		return errors.Is(err, recommend.ErrModelUnavailable) || errors.Is(err, context.DeadlineExceeded)
	}, p.logger)

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.CachePath != "" {
		disk, err := openDiskCache(cfg.CachePath, cfg.CacheTTL)
		if err != nil {
			_ = p.backend.Close()
			return nil, err
		}
		p.disk = disk
	}

	if cfg.ProbeOnOpen {
		if _, err := p.embedRemote(ctx, "ping"); err != nil {
			if !errors.Is(err, recommend.ErrModelUnavailable) {
				_ = p.Close()
				return nil, fmt.Errorf("embedding: probe failed: %w", err)
			}
			p.logger.Warn().Err(err).Msg("embedding model not ready yet")
		}
	} else {
		p.ready.Store(true)
	}

	p.logger.Info().
		Int("dimensions", cfg.Dimensions).
		Bool("ready", p.ready.Load()).
		Bool("disk_cache", p.disk != nil).
		Msg("embedding provider opened")

	return p, nil
}

// Embed returns the L2-normalized embedding of text.
// Errors wrap recommend.ErrModelUnavailable when the model is not ready,
// overloaded or the circuit is open.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("embedding: %w: provider closed", recommend.ErrModelUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding: %w: empty text", recommend.ErrInvalidArgument)
	}

	key := cache.GenerateKey("embed", map[string]string{
		"backend": p.backend.Name(),
		"model":   p.cfg.Model,
		"text":    text,
	})

	if vec, ok := p.memory.Get(key); ok {
		metrics.RecordCacheLookup("memory", true)
		return clone(vec), nil
	}
	metrics.RecordCacheLookup("memory", false)

	if p.disk != nil {
		vec, ok, err := p.disk.Get(key)
		switch {
		case err != nil:
			p.logger.Warn().Err(err).Msg("embedding disk cache read failed")
		case ok && len(vec) == p.cfg.Dimensions:
			metrics.RecordCacheLookup("disk", true)
			p.memory.Add(key, vec)
			return clone(vec), nil
		default:
			metrics.RecordCacheLookup("disk", false)
		}
	}

	vec, err := p.embedRemote(ctx, text)
	if err != nil {
		return nil, err
	}

	p.memory.Add(key, vec)
	if p.disk != nil {
		if err := p.disk.Put(key, vec); err != nil {
			p.logger.Warn().Err(err).Msg("embedding disk cache write failed")
		}
	}
	return clone(vec), nil
}

// embedRemote calls the backend through the limiter and circuit breaker and
// validates the result.
func (p *Provider) embedRemote(ctx context.Context, text string) ([]float32, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("embedding: %w: rate limited: %w", recommend.ErrModelUnavailable, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := p.breaker.Execute(func() ([]float32, error) {
		return p.backend.Embed(callCtx, text)
	})
	duration := time.Since(start)

	if err != nil {
		if breaker.IsRejected(err) {
			metrics.RecordEmbedding(p.backend.Name(), "unavailable", duration)
			return nil, fmt.Errorf("embedding: %w: circuit %s: %w", recommend.ErrModelUnavailable, p.breaker.State(), err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// Per-call timeout with a live caller context: the model is slow.
			err = fmt.Errorf("%w: %w", recommend.ErrModelUnavailable, err)
		}
		status := "error"
		if errors.Is(err, recommend.ErrModelUnavailable) {
			status = "unavailable"
		}
		metrics.RecordEmbedding(p.backend.Name(), status, duration)
		return nil, fmt.Errorf("embedding: %w", err)
	}

	if len(raw) != p.cfg.Dimensions {
		metrics.RecordEmbedding(p.backend.Name(), "error", duration)
		return nil, fmt.Errorf("embedding: model returned %d dimensions, want %d", len(raw), p.cfg.Dimensions)
	}
	vec, err := normalize(raw)
	if err != nil {
		metrics.RecordEmbedding(p.backend.Name(), "error", duration)
		return nil, fmt.Errorf("embedding: %w", err)
	}

	metrics.RecordEmbedding(p.backend.Name(), "success", duration)
	if !p.ready.Swap(true) {
		p.logger.Info().Msg("embedding model ready")
	}
	return vec, nil
}

// Dimensions returns the configured vector length.
func (p *Provider) Dimensions() int {
	return p.cfg.Dimensions
}

// Ready reports whether the model has answered at least once and the
// circuit is not open.
func (p *Provider) Ready() bool {
	return !p.closed.Load() && p.ready.Load() && p.breaker.State() != "open"
}

// Close releases the backend and both caches.
func (p *Provider) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if err := p.backend.Close(); err != nil {
			errs = append(errs, err)
		}
		if p.disk != nil {
			if err := p.disk.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		hits, misses, size := p.memory.Stats()
		p.memory.Clear()
		p.logger.Info().
			Int64("cache_hits", hits).
			Int64("cache_misses", misses).
			Int("cache_entries", size).
			Msg("embedding provider closed")
	})
	return errors.Join(errs...)
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}

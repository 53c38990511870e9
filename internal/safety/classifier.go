// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/breaker"
	"github.com/carlulsoe/stellar-spire/internal/metrics"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// ErrUnavailable reports that the classifier backend cannot serve right now.
var ErrUnavailable = errors.New("content classifier unavailable")

// Supported backend names.
const (
	BackendHTTP      = "http"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
)

// Backend produces raw category scores for a text.
// Temporary failures must wrap ErrUnavailable.
type Backend interface {
	Name() string
	Scores(ctx context.Context, text string) (map[string]float64, error)
}

// Config configures the classifier.
type Config struct {
	Backend string `json:"backend"`

	// URL is the text-classification server for the http backend, or an
	// API base URL override for the others.
	URL    string `json:"url"`
	APIKey string `json:"-"`
	Model  string `json:"model"`

	Timeout time.Duration `json:"timeout"`

	// MaxChars truncates input before classification. 0 means no limit.
	MaxChars int `json:"max_chars"`

	// Thresholds overrides individual category thresholds.
	Thresholds map[string]float64 `json:"thresholds"`
}

// DefaultConfig points at a local toxic-bert text-classification server.
func DefaultConfig() *Config {
	return &Config{
		Backend:  BackendHTTP,
		URL:      "http://localhost:8081",
		Timeout:  10 * time.Second,
		MaxChars: 20000,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendHTTP:
		if c.URL == "" {
			return errors.New("safety: url is required for the http backend")
		}
	case BackendOpenAI:
	case BackendAnthropic:
		if c.Model == "" {
			return errors.New("safety: model is required for the anthropic backend")
		}
	default:
		return fmt.Errorf("safety: unknown backend %q", c.Backend)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("safety: timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxChars < 0 {
		return fmt.Errorf("safety: max_chars must be non-negative, got %d", c.MaxChars)
	}
	return nil
}

// Classifier applies a threshold policy to backend scores.
type Classifier struct {
	backend  Backend
	policy   Policy
	timeout  time.Duration
	maxChars int
	breaker  *breaker.Breaker[map[string]float64]
	logger   zerolog.Logger
}

// Open builds the configured backend and returns a classifier.
func Open(cfg *Config, logger zerolog.Logger) (*Classifier, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var backend Backend
	switch cfg.Backend {
	case BackendHTTP:
		backend = NewHTTPBackend(cfg.URL, cfg.Timeout)
	case BackendOpenAI:
		backend = NewOpenAIBackend(cfg.APIKey, cfg.URL, cfg.Model)
	case BackendAnthropic:
		backend = NewAnthropicBackend(cfg.APIKey, cfg.URL, cfg.Model)
	}
	return NewClassifier(backend, cfg, logger)
}

// NewClassifier wraps an existing backend.
func NewClassifier(backend Backend, cfg *Config, logger zerolog.Logger) (*Classifier, error) {
	if backend == nil {
		return nil, errors.New("safety: backend is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	policy, err := DefaultPolicy().WithOverrides(cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}

	logger = logger.With().Str("component", "safety").Str("backend", backend.Name()).Logger()
	return &Classifier{
		backend:  backend,
		policy:   policy,
		timeout:  timeout,
		maxChars: cfg.MaxChars,
		breaker: breaker.New[map[string]float64](breaker.DefaultConfig("safety_"+backend.Name()), func(err error) bool {
			return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
		}, logger),
		logger: logger,
	}, nil
}

// Classify scores text and applies the policy.
func (c *Classifier) Classify(ctx context.Context, text string) (Verdict, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Verdict{}, fmt.Errorf("safety: %w: empty text", recommend.ErrInvalidArgument)
	}
	if c.maxChars > 0 && len(text) > c.maxChars {
		text = truncate(text, c.maxChars)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	scores, err := c.breaker.Execute(func() (map[string]float64, error) {
		return c.backend.Scores(callCtx, text)
	})
	if err != nil {
		metrics.SafetyVerdicts.WithLabelValues(c.backend.Name(), "error").Inc()
		switch {
		case ctx.Err() != nil:
			return Verdict{}, ctx.Err()
		case breaker.IsRejected(err):
			return Verdict{}, fmt.Errorf("safety: %w: circuit %s", ErrUnavailable, c.breaker.State())
		case errors.Is(err, context.DeadlineExceeded):
			return Verdict{}, fmt.Errorf("safety: %w: %w", ErrUnavailable, err)
		default:
			return Verdict{}, fmt.Errorf("safety: %w", err)
		}
	}

	verdict := c.policy.Evaluate(scores)
	metrics.RecordSafetyVerdict(c.backend.Name(), verdict.IsAcceptable, verdict.Flags)
	if !verdict.IsAcceptable {
		c.logger.Debug().Strs("flags", verdict.Flags).Msg("content flagged")
	}
	return verdict, nil
}

// Policy returns the active thresholds.
func (c *Classifier) Policy() Policy {
	return c.policy
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

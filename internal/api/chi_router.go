// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/middleware"
)

// Config holds HTTP surface settings.
type Config struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	MaxBodyBytes      int64

	// DefaultK is used when a request omits k.
	DefaultK int

	// SlowRequest is the access log warn threshold.
	SlowRequest time.Duration

	// ReadyTimeout bounds each readiness check.
	ReadyTimeout time.Duration
}

// Router owns the handler and the middleware stack.
type Router struct {
	handler *Handler
	chi     *ChiMiddleware
	cfg     Config
	logger  zerolog.Logger
}

// NewRouter validates deps and builds a router.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	if deps.Recommender == nil {
		return nil, errors.New("api: recommender is required")
	}
	if deps.Interactions == nil {
		return nil, errors.New("api: interaction writer is required")
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 10
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}

	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.CORSOrigins
	if cfg.RateLimitRequests > 0 {
		mwCfg.RateLimitRequests = cfg.RateLimitRequests
	}
	if cfg.RateLimitWindow > 0 {
		mwCfg.RateLimitWindow = cfg.RateLimitWindow
	}
	mwCfg.RateLimitDisabled = cfg.RateLimitDisabled

	logger = logger.With().Str("component", "api").Logger()
	return &Router{
		handler: newHandler(deps, cfg, logger),
		chi:     NewChiMiddleware(mwCfg),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Handler returns the routed http.Handler.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(router.logger, router.cfg.SlowRequest))
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chi.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chi.RateLimitCustom("health", RateLimitHealth, time.Minute))
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chi.RateLimit("api"))
		r.Use(APISecurityHeaders())
		r.Use(MaxBodySize(router.cfg.MaxBodyBytes))

		r.Get("/recommendations/user/{userID}", router.handler.Recommendations)

		r.Route("/stories", func(r chi.Router) {
			r.Get("/popular", router.handler.PopularStories)
			r.Post("/{storyID}/reads", router.handler.RecordRead)
			r.Post("/{storyID}/likes", router.handler.ToggleLike)
			r.Post("/{storyID}/embedding", router.handler.ReindexStory)
		})

		r.Post("/safety/classify", router.handler.Classify)
	})

	return r
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/api"
	"github.com/carlulsoe/stellar-spire/internal/config"
	"github.com/carlulsoe/stellar-spire/internal/embedding"
	"github.com/carlulsoe/stellar-spire/internal/indexer"
	"github.com/carlulsoe/stellar-spire/internal/logging"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/recommend/algorithms"
	"github.com/carlulsoe/stellar-spire/internal/recommend/reranking"
	"github.com/carlulsoe/stellar-spire/internal/safety"
	"github.com/carlulsoe/stellar-spire/internal/store/redisstore"
	"github.com/carlulsoe/stellar-spire/internal/store/sqlstore"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config     *config.Config
	Store      *sqlstore.Store
	Counters   *redisstore.PopularityStore // nil unless redis.enabled
	Provider   *embedding.Provider
	Classifier *safety.Classifier // nil unless safety.enabled
	Engine     *recommend.Engine
	Indexer    *indexer.Indexer

	logger  zerolog.Logger
	closers []func() error
}

// Open builds every component from cfg in dependency order. On failure the
// components opened so far are closed.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}
	if err := a.open(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context) (err error) {
	cfg, logger := a.Config, a.logger

	a.Store, err = sqlstore.Open(ctx, cfg.ForStore(), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)
	logger.Info().
		Str("driver", a.Store.Driver()).
		Str("dsn", logging.RedactDSN(cfg.Store.DSN)).
		Msg("Interaction store opened")

	var engineStore recommend.Store = a.Store
	if cfg.Redis.Enabled {
		a.Counters, err = redisstore.Open(ctx, cfg.ForRedis(), a.Store, logger)
		if err != nil {
			return fmt.Errorf("open redis: %w", err)
		}
		a.closers = append(a.closers, a.Counters.Close)
		engineStore = a.Counters
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Redis popularity counters enabled")
	}

	a.Provider, err = embedding.Open(ctx, cfg.ForEmbedding(), logger)
	if err != nil {
		return fmt.Errorf("open embedding provider: %w", err)
	}
	a.closers = append(a.closers, a.Provider.Close)

	if safetyCfg := cfg.ForSafety(); safetyCfg != nil {
		a.Classifier, err = safety.Open(safetyCfg, logger)
		if err != nil {
			return fmt.Errorf("open safety classifier: %w", err)
		}
		logger.Info().Str("backend", cfg.Safety.Backend).Msg("Content safety classifier enabled")
	}

	engineCfg := cfg.ForEngine()
	a.Engine, err = recommend.NewEngine(engineCfg, engineStore, logger,
		recommend.WithAffinityModel(a.affinityModel(engineCfg)),
		recommend.WithScorer(algorithms.NewBlendScorer()),
		recommend.WithDiversifier(a.diversifier()),
		recommend.WithEmbedder(a.Provider, a.Store),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	a.Indexer, err = indexer.New(a.Store, a.Provider, a.indexerClassifier(), cfg.ForIndexer(), logger)
	if err != nil {
		return fmt.Errorf("create indexer: %w", err)
	}

	return nil
}

func (a *App) affinityModel(cfg *recommend.Config) recommend.AffinityModel {
	if a.Config.Recommend.Affinity == "collaborative" {
		return algorithms.NewCollaborativeModel(a.Store, cfg.Collaborative, a.logger)
	}
	return algorithms.NewContentModel(cfg.Dimensions, a.logger)
}

func (a *App) diversifier() recommend.Diversifier {
	if a.Config.Recommend.Diversifier == "mmr" {
		return reranking.NewMMR(a.Config.Recommend.MMRLambda)
	}
	return reranking.NewMaxMin()
}

// indexerClassifier avoids handing a typed nil to the interface.
func (a *App) indexerClassifier() indexer.Classifier {
	if a.Classifier == nil {
		return nil
	}
	return a.Classifier
}

// Interactions returns the write path: the Redis decorator when enabled so
// counters stay in step, otherwise the SQL store.
func (a *App) Interactions() api.InteractionWriter {
	if a.Counters != nil {
		return a.Counters
	}
	return a.Store
}

// APIDependencies assembles the HTTP collaborators and readiness checks.
func (a *App) APIDependencies() api.Dependencies {
	deps := api.Dependencies{
		Recommender:  a.Engine,
		Interactions: a.Interactions(),
		Indexer:      a.Indexer,
		Checks: []api.HealthCheck{
			{Name: "store", Check: a.Store.Ping},
			{Name: "embedding", Check: a.providerReady},
		},
	}
	if a.Classifier != nil {
		deps.Classifier = a.Classifier
	}
	if a.Counters != nil {
		deps.Checks = append(deps.Checks, api.HealthCheck{Name: "redis", Check: a.Counters.Ping})
	}
	return deps
}

func (a *App) providerReady(context.Context) error {
	if !a.Provider.Ready() {
		return recommend.ErrModelUnavailable
	}
	return nil
}

// Close releases components in reverse open order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

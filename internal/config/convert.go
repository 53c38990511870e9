// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package config

import (
	"os"

	"github.com/carlulsoe/stellar-spire/internal/api"
	"github.com/carlulsoe/stellar-spire/internal/embedding"
	"github.com/carlulsoe/stellar-spire/internal/indexer"
	"github.com/carlulsoe/stellar-spire/internal/logging"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/safety"
	"github.com/carlulsoe/stellar-spire/internal/store/redisstore"
	"github.com/carlulsoe/stellar-spire/internal/store/sqlstore"
	"github.com/carlulsoe/stellar-spire/internal/supervisor"
	"github.com/carlulsoe/stellar-spire/internal/supervisor/services"
)

// The For* methods translate sections into component configurations.
// Embedding.Dimensions is the single source of truth for vector length.

func (c *Config) ForLogging() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Caller: c.Logging.Caller,
		Output: os.Stderr,
	}
}

func (c *Config) ForStore() *sqlstore.Config {
	return &sqlstore.Config{
		Driver:          c.Store.Driver,
		DSN:             c.Store.DSN,
		Dimensions:      c.Embedding.Dimensions,
		MaxOpenConns:    c.Store.MaxOpenConns,
		MaxIdleConns:    c.Store.MaxIdleConns,
		ConnMaxLifetime: c.Store.ConnMaxLifetime,
		AutoMigrate:     c.Store.AutoMigrate,
	}
}

func (c *Config) ForRedis() redisstore.Config {
	return redisstore.Config{
		Addr:      c.Redis.Addr,
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		KeyPrefix: c.Redis.KeyPrefix,
		Timeout:   c.Redis.Timeout,
	}
}

func (c *Config) ForEmbedding() *embedding.Config {
	return &embedding.Config{
		Backend:           c.Embedding.Backend,
		Model:             c.Embedding.Model,
		APIKey:            c.Embedding.APIKey,
		BaseURL:           c.Embedding.BaseURL,
		Dimensions:        c.Embedding.Dimensions,
		RequestDimensions: c.Embedding.RequestDimensions,
		Timeout:           c.Embedding.Timeout,
		RateLimit:         c.Embedding.RateLimit,
		Burst:             c.Embedding.Burst,
		CacheSize:         c.Embedding.CacheSize,
		CacheTTL:          c.Embedding.CacheTTL,
		CachePath:         c.Embedding.CachePath,
		ProbeOnOpen:       c.Embedding.ProbeOnOpen,
	}
}

// ForSafety returns nil when the classifier is disabled.
func (c *Config) ForSafety() *safety.Config {
	if !c.Safety.Enabled {
		return nil
	}
	thresholds := make(map[string]float64, len(c.Safety.Thresholds))
	for k, v := range c.Safety.Thresholds {
		thresholds[k] = v
	}
	return &safety.Config{
		Backend:    c.Safety.Backend,
		URL:        c.Safety.URL,
		APIKey:     c.Safety.APIKey,
		Model:      c.Safety.Model,
		Timeout:    c.Safety.Timeout,
		MaxChars:   c.Safety.MaxChars,
		Thresholds: thresholds,
	}
}

func (c *Config) ForEngine() *recommend.Config {
	return &recommend.Config{
		Dimensions:       c.Embedding.Dimensions,
		MaxCandidates:    c.Recommend.MaxCandidates,
		Timeout:          c.Recommend.Timeout,
		RetryDelay:       c.Recommend.RetryDelay,
		EmbedMissing:     c.Recommend.EmbedMissing,
		PopularitySource: recommend.PopularitySource(c.Recommend.PopularitySource),
		Limits: recommend.LimitsConfig{
			DefaultK: c.Recommend.DefaultK,
			MaxK:     c.Recommend.MaxK,
		},
		Collaborative: recommend.CollaborativeConfig{
			Neighbours:    c.Recommend.Neighbours,
			MaxConcurrent: c.Recommend.MaxConcurrent,
		},
	}
}

func (c *Config) ForIndexer() indexer.Config {
	return indexer.Config{
		RequireSafe: c.Indexer.RequireSafe,
		BatchSize:   c.Indexer.BatchSize,
		Concurrency: c.Indexer.Concurrency,
		RetryDelay:  c.Indexer.RetryDelay,
	}
}

func (c *Config) ForAPI() api.Config {
	return api.Config{
		CORSOrigins:       append([]string(nil), c.Security.CORSOrigins...),
		RateLimitRequests: c.Security.RateLimitReqs,
		RateLimitWindow:   c.Security.RateLimitWindow,
		RateLimitDisabled: c.Security.RateLimitDisabled,
		MaxBodyBytes:      c.Security.MaxBodyBytes,
		DefaultK:          c.Recommend.DefaultK,
		SlowRequest:       c.Recommend.Timeout,
	}
}

func (c *Config) ForSupervisor() supervisor.TreeConfig {
	return supervisor.TreeConfig{
		FailureThreshold: c.Supervisor.FailureThreshold,
		FailureDecay:     c.Supervisor.FailureDecay,
		FailureBackoff:   c.Supervisor.FailureBackoff,
		ShutdownTimeout:  c.Supervisor.ShutdownTimeout,
	}
}

func (c *Config) ForBackfill() services.BackfillConfig {
	return services.BackfillConfig{
		Schedule:  c.Indexer.BackfillSchedule,
		OnStartup: c.Indexer.BackfillOnStartup,
	}
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/carlulsoe/stellar-spire/internal/safety"
	"github.com/carlulsoe/stellar-spire/internal/validation"
)

// Validate checks field rules first and then the rules that span sections.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	var errs []error

	if c.Recommend.DefaultK > c.Recommend.MaxK {
		errs = append(errs, fmt.Errorf("recommend.default_k (%d) must not exceed recommend.max_k (%d)",
			c.Recommend.DefaultK, c.Recommend.MaxK))
	}

	if c.Store.MaxIdleConns > c.Store.MaxOpenConns {
		errs = append(errs, fmt.Errorf("store.max_idle_conns (%d) must not exceed store.max_open_conns (%d)",
			c.Store.MaxIdleConns, c.Store.MaxOpenConns))
	}

	if c.Embedding.Backend == "gemini" && c.Embedding.APIKey == "" {
		errs = append(errs, errors.New("embedding.api_key is required for the gemini backend"))
	}

	if c.Safety.Enabled {
		if err := c.validateSafety(); err != nil {
			errs = append(errs, err)
		}
	} else if c.Indexer.RequireSafe {
		errs = append(errs, errors.New("indexer.require_safe needs safety.enabled"))
	}

	if c.Indexer.BackfillEnabled && c.Indexer.BackfillSchedule != "" {
		if _, err := cron.ParseStandard(c.Indexer.BackfillSchedule); err != nil {
			errs = append(errs, fmt.Errorf("indexer.backfill_schedule: %w", err))
		}
	}

	if err := c.validateCORS(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) validateSafety() error {
	switch c.Safety.Backend {
	case safety.BackendHTTP:
		if c.Safety.URL == "" {
			return errors.New("safety.url is required for the http backend")
		}
	default:
		if c.Safety.APIKey == "" {
			return fmt.Errorf("safety.api_key is required for the %s backend", c.Safety.Backend)
		}
	}
	if _, err := safety.DefaultPolicy().WithOverrides(c.Safety.Thresholds); err != nil {
		return fmt.Errorf("safety.thresholds: %w", err)
	}
	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			if c.Server.IsProduction() {
				return errors.New("security.cors_origins must not contain * in production")
			}
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || strings.Trim(u.Path, "/") != "" {
			return fmt.Errorf("security.cors_origins: invalid origin %q", origin)
		}
	}
	return nil
}

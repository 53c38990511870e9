// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

/*
Package config loads the service configuration.

Sources are layered with koanf, later layers overriding earlier ones:

  - built-in defaults (defaultConfig)
  - a YAML file given on the command line, named by CONFIG_PATH, or found in
    DefaultConfigPaths
  - environment variables, after a .env file has been merged into the
    process environment with godotenv

Only the variables listed in envMappings are read. Comma-separated values are
accepted for list fields (CORS_ORIGINS) and key=value lists for map fields
(SAFETY_THRESHOLDS=threat=0.2,insult=0.4).

Example config.yaml:

	store:
	  driver: postgres
	  dsn: postgres://spire:secret@db:5432/spire?sslmode=disable
	embedding:
	  backend: openai
	  model: text-embedding-3-small
	  dimensions: 1536
	redis:
	  enabled: true
	  addr: redis:6379
	recommend:
	  popularity_source: likes
	  diversifier: mmr
	  mmr_lambda: 0.6

The For* methods convert sections into the configuration types of the store,
embedding, safety, recommend, indexer, redisstore and logging packages.
*/
package config

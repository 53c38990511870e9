// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stellar-spire/config.yaml",
	"/etc/stellar-spire/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is loaded into the process environment before anything else.
// Variables already set in the environment win.
var DotEnvFile = ".env"

// Load builds the configuration from, in increasing priority:
//  1. built-in defaults
//  2. the YAML file at path, or the first of DefaultConfigPaths found
//  3. environment variables (see envMappings), including a .env file
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processMapFields(k); err != nil {
		return nil, fmt.Errorf("failed to process map fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are accepted as comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// mapConfigPaths are accepted as "key=value,key=value" strings from the environment.
var mapConfigPaths = []string{
	"safety.thresholds",
}

func processMapFields(k *koanf.Koanf) error {
	for _, path := range mapConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		out := make(map[string]interface{})
		for _, pair := range strings.Split(s, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, raw, found := strings.Cut(pair, "=")
			if !found {
				return fmt.Errorf("%s: expected key=value, got %q", path, pair)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("%s: invalid value for %s: %w", path, name, err)
			}
			out[strings.TrimSpace(name)] = v
		}
		// Delete first so the string value does not shadow the map.
		k.Delete(path)
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps an environment variable name to a config path.
// Unknown variables map to "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var envMappings = map[string]string{
	// Server
	"http_host":          "server.host",
	"http_port":          "server.port",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"shutdown_timeout":   "server.shutdown_timeout",
	"environment":        "server.environment",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Store
	"store_driver":            "store.driver",
	"store_dsn":               "store.dsn",
	"database_url":            "store.dsn",
	"store_max_open_conns":    "store.max_open_conns",
	"store_max_idle_conns":    "store.max_idle_conns",
	"store_conn_max_lifetime": "store.conn_max_lifetime",
	"store_auto_migrate":      "store.auto_migrate",

	// Redis
	"redis_enabled":         "redis.enabled",
	"redis_addr":            "redis.addr",
	"redis_password":        "redis.password",
	"redis_db":              "redis.db",
	"redis_key_prefix":      "redis.key_prefix",
	"redis_timeout":         "redis.timeout",
	"redis_warm_on_startup": "redis.warm_on_startup",

	// Embedding
	"embedding_backend":            "embedding.backend",
	"embedding_model":              "embedding.model",
	"embedding_api_key":            "embedding.api_key",
	"embedding_base_url":           "embedding.base_url",
	"embedding_dimensions":         "embedding.dimensions",
	"embedding_request_dimensions": "embedding.request_dimensions",
	"embedding_timeout":            "embedding.timeout",
	"embedding_rate_limit":         "embedding.rate_limit",
	"embedding_burst":              "embedding.burst",
	"embedding_cache_size":         "embedding.cache_size",
	"embedding_cache_ttl":          "embedding.cache_ttl",
	"embedding_cache_path":         "embedding.cache_path",
	"embedding_probe_on_open":      "embedding.probe_on_open",

	// Safety
	"safety_enabled":    "safety.enabled",
	"safety_backend":    "safety.backend",
	"safety_url":        "safety.url",
	"safety_api_key":    "safety.api_key",
	"safety_model":      "safety.model",
	"safety_timeout":    "safety.timeout",
	"safety_max_chars":  "safety.max_chars",
	"safety_thresholds": "safety.thresholds",

	// Recommend
	"recommend_max_candidates":    "recommend.max_candidates",
	"recommend_timeout":           "recommend.timeout",
	"recommend_retry_delay":       "recommend.retry_delay",
	"recommend_embed_missing":     "recommend.embed_missing",
	"recommend_popularity_source": "recommend.popularity_source",
	"recommend_default_k":         "recommend.default_k",
	"recommend_max_k":             "recommend.max_k",
	"recommend_affinity":          "recommend.affinity",
	"recommend_neighbours":        "recommend.neighbours",
	"recommend_max_concurrent":    "recommend.max_concurrent",
	"recommend_diversifier":       "recommend.diversifier",
	"recommend_mmr_lambda":        "recommend.mmr_lambda",

	// Indexer
	"indexer_require_safe":        "indexer.require_safe",
	"indexer_batch_size":          "indexer.batch_size",
	"indexer_concurrency":         "indexer.concurrency",
	"indexer_retry_delay":         "indexer.retry_delay",
	"indexer_backfill_enabled":    "indexer.backfill_enabled",
	"indexer_backfill_schedule":   "indexer.backfill_schedule",
	"indexer_backfill_on_startup": "indexer.backfill_on_startup",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"max_body_bytes":      "security.max_body_bytes",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

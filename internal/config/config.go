// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package config

import "time"

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Redis      RedisConfig      `koanf:"redis"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Safety     SafetyConfig     `koanf:"safety"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Indexer    IndexerConfig    `koanf:"indexer"`
	Security   SecurityConfig   `koanf:"security"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Environment     string        `koanf:"environment" validate:"oneof=development production"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig selects and tunes the SQL interaction store.
type StoreConfig struct {
	// Driver is duckdb, postgres, sqlite or mysql.
	Driver          string        `koanf:"driver" validate:"oneof=duckdb postgres sqlite mysql"`
	DSN             string        `koanf:"dsn" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// RedisConfig enables Redis-backed popularity counters.
type RedisConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Addr          string        `koanf:"addr" validate:"required_if=Enabled true"`
	Password      string        `koanf:"password"`
	DB            int           `koanf:"db" validate:"min=0"`
	KeyPrefix     string        `koanf:"key_prefix"`
	Timeout       time.Duration `koanf:"timeout"`
	WarmOnStartup bool          `koanf:"warm_on_startup"`
}

// EmbeddingConfig configures the embedding provider. Dimensions is also the
// vector length used by the store and the engine.
type EmbeddingConfig struct {
	Backend           string        `koanf:"backend" validate:"oneof=openai gemini"`
	Model             string        `koanf:"model" validate:"required"`
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	Dimensions        int           `koanf:"dimensions" validate:"min=1"`
	RequestDimensions bool          `koanf:"request_dimensions"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit         float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst             int           `koanf:"burst" validate:"min=0"`
	CacheSize         int           `koanf:"cache_size" validate:"min=0"`
	CacheTTL          time.Duration `koanf:"cache_ttl"`
	CachePath         string        `koanf:"cache_path"`
	ProbeOnOpen       bool          `koanf:"probe_on_open"`
}

// SafetyConfig configures the optional content classifier.
type SafetyConfig struct {
	Enabled    bool               `koanf:"enabled"`
	Backend    string             `koanf:"backend" validate:"oneof=http openai anthropic"`
	URL        string             `koanf:"url" validate:"omitempty,url"`
	APIKey     string             `koanf:"api_key"`
	Model      string             `koanf:"model"`
	Timeout    time.Duration      `koanf:"timeout" validate:"gt=0"`
	MaxChars   int                `koanf:"max_chars" validate:"min=0"`
	Thresholds map[string]float64 `koanf:"thresholds"`
}

// RecommendConfig configures the recommendation engine.
type RecommendConfig struct {
	MaxCandidates    int           `koanf:"max_candidates" validate:"min=1"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	RetryDelay       time.Duration `koanf:"retry_delay" validate:"gte=0"`
	EmbedMissing     bool          `koanf:"embed_missing"`
	PopularitySource string        `koanf:"popularity_source" validate:"popularity_source"`
	DefaultK         int           `koanf:"default_k" validate:"min=1"`
	MaxK             int           `koanf:"max_k" validate:"min=1"`

	// Affinity is "content" (decayed profile) or "collaborative" (similar readers).
	Affinity      string `koanf:"affinity" validate:"oneof=content collaborative"`
	Neighbours    int    `koanf:"neighbours" validate:"min=1"`
	MaxConcurrent int    `koanf:"max_concurrent" validate:"min=1"`

	// Diversifier is "maxmin" or "mmr".
	Diversifier string  `koanf:"diversifier" validate:"oneof=maxmin mmr"`
	MMRLambda   float64 `koanf:"mmr_lambda" validate:"gte=0,lte=1"`
}

// IndexerConfig configures embedding maintenance.
type IndexerConfig struct {
	RequireSafe       bool          `koanf:"require_safe"`
	BatchSize         int           `koanf:"batch_size" validate:"min=1"`
	Concurrency       int           `koanf:"concurrency" validate:"min=1"`
	RetryDelay        time.Duration `koanf:"retry_delay" validate:"gte=0"`
	BackfillEnabled   bool          `koanf:"backfill_enabled"`
	BackfillSchedule  string        `koanf:"backfill_schedule"`
	BackfillOnStartup bool          `koanf:"backfill_on_startup"`
}

// SecurityConfig holds HTTP hardening settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes" validate:"min=1"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gte=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gte=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// defaultConfig returns the built-in defaults: embedded DuckDB, a local
// OpenAI-compatible embedding server, no Redis and no safety classifier.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Driver:          "duckdb",
			DSN:             "data/stellar-spire.duckdb",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			KeyPrefix:     "stellar-spire:",
			Timeout:       500 * time.Millisecond,
			WarmOnStartup: true,
		},
		Embedding: EmbeddingConfig{
			Backend:     "openai",
			Model:       "BAAI/bge-large-en-v1.5",
			BaseURL:     "http://localhost:8080/v1",
			Dimensions:  1024,
			Timeout:     10 * time.Second,
			RateLimit:   20,
			Burst:       40,
			CacheSize:   10000,
			CacheTTL:    24 * time.Hour,
			CachePath:   "data/embedding-cache",
			ProbeOnOpen: true,
		},
		Safety: SafetyConfig{
			Backend:  "http",
			URL:      "http://localhost:8081",
			Timeout:  10 * time.Second,
			MaxChars: 20000,
		},
		Recommend: RecommendConfig{
			MaxCandidates:    50,
			Timeout:          3 * time.Second,
			RetryDelay:       250 * time.Millisecond,
			PopularitySource: "reads",
			DefaultK:         10,
			MaxK:             100,
			Affinity:         "content",
			Neighbours:       50,
			MaxConcurrent:    8,
			Diversifier:      "maxmin",
			MMRLambda:        0.7,
		},
		Indexer: IndexerConfig{
			BatchSize:         100,
			Concurrency:       4,
			RetryDelay:        500 * time.Millisecond,
			BackfillEnabled:   true,
			BackfillSchedule:  "*/15 * * * *",
			BackfillOnStartup: true,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			MaxBodyBytes:    1 << 20,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	return defaultConfig()
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// IsProduction reports whether the service runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

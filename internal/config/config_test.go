// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate keeps Load from picking up files or variables outside the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv(ConfigPathEnvVar, "")
	for env := range envMappings {
		if _, ok := os.LookupEnv(strings.ToUpper(env)); ok {
			t.Setenv(strings.ToUpper(env), "")
			os.Unsetenv(strings.ToUpper(env))
		}
	}
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Driver != "duckdb" {
		t.Errorf("Store.Driver = %q, want duckdb", cfg.Store.Driver)
	}
	if cfg.Recommend.PopularitySource != "reads" {
		t.Errorf("Recommend.PopularitySource = %q, want reads", cfg.Recommend.PopularitySource)
	}
	if cfg.Recommend.MaxCandidates != 50 {
		t.Errorf("Recommend.MaxCandidates = %d, want 50", cfg.Recommend.MaxCandidates)
	}
	if cfg.Server.Addr() != "0.0.0.0:8090" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Redis.Enabled || cfg.Safety.Enabled {
		t.Error("redis and safety should be disabled by default")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "spire.yaml", `
store:
  driver: sqlite
  dsn: /tmp/spire.db
embedding:
  dimensions: 384
recommend:
  popularity_source: likes
  diversifier: mmr
  mmr_lambda: 0.5
  timeout: 750ms
security:
  cors_origins:
    - https://reader.example.com
safety:
  enabled: true
  thresholds:
    threat: 0.1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "/tmp/spire.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Recommend.Timeout != 750*time.Millisecond {
		t.Errorf("Recommend.Timeout = %v, want 750ms", cfg.Recommend.Timeout)
	}
	if cfg.Recommend.Diversifier != "mmr" || cfg.Recommend.MMRLambda != 0.5 {
		t.Errorf("Recommend diversifier = %s/%v", cfg.Recommend.Diversifier, cfg.Recommend.MMRLambda)
	}
	if got := cfg.Security.CORSOrigins; len(got) != 1 || got[0] != "https://reader.example.com" {
		t.Errorf("CORSOrigins = %v", got)
	}
	if cfg.Safety.Thresholds["threat"] != 0.1 {
		t.Errorf("Safety.Thresholds = %v", cfg.Safety.Thresholds)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want default 8090", cfg.Server.Port)
	}
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "other.yaml", "logging:\n  level: debug\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "spire.yaml", "store:\n  driver: sqlite\n  dsn: a.db\n")

	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://spire@localhost/spire")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("RECOMMEND_TIMEOUT", "2s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SAFETY_THRESHOLDS", "threat=0.2, insult=0.4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Driver != "postgres" || cfg.Store.DSN != "postgres://spire@localhost/spire" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Recommend.Timeout != 2*time.Second {
		t.Errorf("Recommend.Timeout = %v, want 2s", cfg.Recommend.Timeout)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled = false, want true")
	}
	if got := cfg.Security.CORSOrigins; len(got) != 2 || got[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", got)
	}
	if cfg.Safety.Thresholds["threat"] != 0.2 || cfg.Safety.Thresholds["insult"] != 0.4 {
		t.Errorf("Safety.Thresholds = %v", cfg.Safety.Thresholds)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".env", "REDIS_KEY_PREFIX=from-dotenv:\nRECOMMEND_DEFAULT_K=5\n")
	t.Cleanup(func() {
		os.Unsetenv("REDIS_KEY_PREFIX")
		os.Unsetenv("RECOMMEND_DEFAULT_K")
	})
	// Real environment wins over .env.
	t.Setenv("RECOMMEND_DEFAULT_K", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.KeyPrefix != "from-dotenv:" {
		t.Errorf("Redis.KeyPrefix = %q, want from-dotenv:", cfg.Redis.KeyPrefix)
	}
	if cfg.Recommend.DefaultK != 7 {
		t.Errorf("Recommend.DefaultK = %d, want 7", cfg.Recommend.DefaultK)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"missing file", nil, "missing.yaml"},
		{"bad threshold pair", map[string]string{"SAFETY_THRESHOLDS": "threat"}, ""},
		{"bad threshold value", map[string]string{"SAFETY_THRESHOLDS": "threat=high"}, ""},
		{"invalid driver", map[string]string{"STORE_DRIVER": "oracle"}, ""},
		{"invalid popularity source", map[string]string{"RECOMMEND_POPULARITY_SOURCE": "shares"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = filepath.Join(dir, tt.file)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }, "dsn"},
		{"default k above max k", func(c *Config) { c.Recommend.DefaultK = 200 }, "default_k"},
		{"idle above open", func(c *Config) { c.Store.MaxIdleConns = 20 }, "max_idle_conns"},
		{"mmr lambda above one", func(c *Config) { c.Recommend.MMRLambda = 1.5 }, "mmr_lambda"},
		{"unknown affinity", func(c *Config) { c.Recommend.Affinity = "random" }, "affinity"},
		{"redis enabled without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "addr"},
		{"gemini without key", func(c *Config) { c.Embedding.Backend = "gemini" }, "api_key"},
		{"require safe without classifier", func(c *Config) { c.Indexer.RequireSafe = true }, "require_safe"},
		{"safety http without url", func(c *Config) {
			c.Safety.Enabled = true
			c.Safety.URL = ""
		}, "safety.url"},
		{"safety openai without key", func(c *Config) {
			c.Safety.Enabled = true
			c.Safety.Backend = "openai"
		}, "safety.api_key"},
		{"unknown threshold category", func(c *Config) {
			c.Safety.Enabled = true
			c.Safety.Thresholds = map[string]float64{"spoilers": 0.5}
		}, "unknown category"},
		{"bad cron schedule", func(c *Config) { c.Indexer.BackfillSchedule = "every minute" }, "backfill_schedule"},
		{"disabled backfill ignores schedule", func(c *Config) {
			c.Indexer.BackfillEnabled = false
			c.Indexer.BackfillSchedule = "every minute"
		}, ""},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "cors_origins"},
		{"explicit cors in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.CORSOrigins = []string{"https://reader.example.com"}
		}, ""},
		{"cors origin with path", func(c *Config) {
			c.Security.CORSOrigins = []string{"https://reader.example.com/app"}
		}, "invalid origin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Converters(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Dimensions = 384
	cfg.Recommend.PopularitySource = "likes"

	if got := cfg.ForStore().Dimensions; got != 384 {
		t.Errorf("ForStore().Dimensions = %d, want 384", got)
	}
	engine := cfg.ForEngine()
	if engine.Dimensions != 384 || engine.PopularitySource != "likes" {
		t.Errorf("ForEngine() = %+v", engine)
	}
	if err := engine.Validate(); err != nil {
		t.Errorf("ForEngine().Validate() error = %v", err)
	}
	if got := cfg.ForEmbedding().Dimensions; got != 384 {
		t.Errorf("ForEmbedding().Dimensions = %d, want 384", got)
	}
	if cfg.ForSafety() != nil {
		t.Error("ForSafety() should be nil while disabled")
	}

	cfg.Safety.Enabled = true
	cfg.Safety.Thresholds = map[string]float64{"threat": 0.2}
	sc := cfg.ForSafety()
	if sc == nil || sc.Thresholds["threat"] != 0.2 {
		t.Fatalf("ForSafety() = %+v", sc)
	}
	sc.Thresholds["threat"] = 0.9
	if cfg.Safety.Thresholds["threat"] != 0.2 {
		t.Error("ForSafety() shares the thresholds map with the config")
	}

	if got := cfg.ForIndexer(); got.BatchSize != 100 || got.Concurrency != 4 {
		t.Errorf("ForIndexer() = %+v", got)
	}
	if got := cfg.ForRedis(); got.KeyPrefix != "stellar-spire:" {
		t.Errorf("ForRedis() = %+v", got)
	}
	if got := cfg.ForLogging(); got.Level != "info" || got.Output == nil {
		t.Errorf("ForLogging() = %+v", got)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"STORE_DSN":         "store.dsn",
		"DATABASE_URL":      "store.dsn",
		"EMBEDDING_API_KEY": "embedding.api_key",
		"cors_origins":      "security.cors_origins",
		"PATH":              "",
		"HOME":              "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.nhat.io/otelsql"

	"github.com/carlulsoe/stellar-spire/internal/metrics"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

// Config configures the SQL interaction store.
type Config struct {
	// Driver is duckdb, postgres, sqlite or mysql.
	Driver string `json:"driver"`

	// DSN is the driver-specific data source name. For duckdb and sqlite it
	// is a file path (":memory:" is not supported because the pool would see
	// separate databases).
	DSN string `json:"-"`

	// Dimensions is the embedding length stored in the vector column.
	Dimensions int `json:"dimensions"`

	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// AutoMigrate creates missing tables on Open.
	AutoMigrate bool `json:"auto_migrate"`
}

// DefaultConfig returns an embedded DuckDB store under ./data.
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverDuckDB,
		DSN:             "data/stellar-spire.duckdb",
		Dimensions:      1024,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
	}
}

// Store implements the interaction store on database/sql.
type Store struct {
	db      *sql.DB
	dialect *dialect
	dims    int
	logger  zerolog.Logger
	now     func() time.Time
}

var (
	_ recommend.Store           = (*Store)(nil)
	_ recommend.SimilarityStore = (*Store)(nil)
	_ recommend.EmbeddingWriter = (*Store)(nil)
	_ recommend.TextSource      = (*Store)(nil)
)

// Open connects to the configured database, verifies the connection and
// optionally creates the schema.
func Open(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("sqlstore: unknown driver %q", cfg.Driver)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("sqlstore: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.DSN == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}

	dsn := cfg.DSN
	switch cfg.Driver {
	case DriverDuckDB, DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		if cfg.Driver == DriverSQLite && !strings.Contains(dsn, "_pragma") {
			dsn = withQuery(dsn, "_pragma=busy_timeout(5000)&_time_format=sqlite")
		}
	case DriverMySQL:
		if !strings.Contains(dsn, "parseTime") {
			dsn = withQuery(dsn, "parseTime=true")
		}
	}

	driver, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to open %s: %w", cfg.Driver, err)
	}

	configurePool(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: failed to ping %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverPostgres || cfg.Driver == DriverMySQL {
		if err := otelsql.RecordStats(db); err != nil {
			logger.Warn().Err(err).Msg("sql connection stats not recorded")
		}
	}

	s := &Store{
		db:      db,
		dialect: d,
		dims:    cfg.Dimensions,
		logger:  logger.With().Str("component", "sqlstore").Str("driver", cfg.Driver).Logger(),
		now:     time.Now,
	}

	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s.logger.Info().Int("dimensions", s.dims).Msg("interaction store opened")
	return s, nil
}

// configurePool applies pool limits. Embedded engines serialize writes, so
// SQLite is limited to a single connection.
func configurePool(db *sql.DB, cfg *Config) {
	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == DriverSQLite {
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	for _, stmt := range s.dialect.schema(s.dims) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: failed to execute schema statement: %s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return recommend.StoreError("ping", err)
	}
	metrics.DBOpenConnections.Set(float64(s.db.Stats().OpenConnections))
	return nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the dialect name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// observe records query metrics and wraps errors into the store taxonomy.
func (s *Store) observe(op, table string, start time.Time, err error) error {
	metrics.RecordDBQuery(op, table, time.Since(start), err)
	if err == nil {
		return nil
	}
	return recommend.StoreError(op, err)
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// chunks splits ids into groups small enough for every driver's bind limit.
func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func anyArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("sqlstore: failed to create directory %s: %w", dir, err)
	}
	return nil
}

func withQuery(dsn, query string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + query
	}
	return dsn + "?" + query
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}

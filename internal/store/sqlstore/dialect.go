// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// dialect captures the SQL differences between the supported databases.
type dialect struct {
	name string

	// numbered placeholders ($1, $2) instead of ?
	numbered bool

	idType     string
	textType   string
	timeType   string
	floatType  string
	vectorType func(dims int) string

	// vectorRead wraps the embedding column so it scans as text.
	vectorRead func(col string) string

	// vectorWrite converts a vector to a bind value.
	vectorWrite func(v []float32) (any, error)

	// indexesInline puts secondary indexes inside CREATE TABLE.
	indexesInline bool

	preamble []string
}

func jsonVector(v []float32) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func plainColumn(col string) string { return col }

var dialects = map[string]*dialect{
	DriverDuckDB: {
		name:        DriverDuckDB,
		idType:      "VARCHAR",
		textType:    "VARCHAR",
		timeType:    "TIMESTAMP",
		floatType:   "DOUBLE",
		vectorType:  func(int) string { return "VARCHAR" },
		vectorRead:  plainColumn,
		vectorWrite: jsonVector,
	},
	DriverPostgres: {
		name:       DriverPostgres,
		numbered:   true,
		idType:     "VARCHAR(64)",
		textType:   "TEXT",
		timeType:   "TIMESTAMPTZ",
		floatType:  "DOUBLE PRECISION",
		vectorType: func(dims int) string { return fmt.Sprintf("vector(%d)", dims) },
		vectorRead: func(col string) string { return col + "::text" },
		vectorWrite: func(v []float32) (any, error) {
			return pgvector.NewVector(v), nil
		},
		preamble: []string{"CREATE EXTENSION IF NOT EXISTS vector"},
	},
	DriverSQLite: {
		name:        DriverSQLite,
		idType:      "TEXT",
		textType:    "TEXT",
		timeType:    "TIMESTAMP",
		floatType:   "REAL",
		vectorType:  func(int) string { return "TEXT" },
		vectorRead:  plainColumn,
		vectorWrite: jsonVector,
	},
	DriverMySQL: {
		name:          DriverMySQL,
		idType:        "VARCHAR(64)",
		textType:      "LONGTEXT",
		timeType:      "DATETIME(6)",
		floatType:     "DOUBLE",
		vectorType:    func(int) string { return "LONGTEXT" },
		vectorRead:    plainColumn,
		vectorWrite:   jsonVector,
		indexesInline: true,
	},
}

// rebind rewrites ? placeholders to $n for numbered dialects.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// schema returns the DDL for the store tables.
func (d *dialect) schema(dims int) []string {
	stmts := append([]string(nil), d.preamble...)

	readIdx := ""
	chapterIdx := ""
	if d.indexesInline {
		readIdx = ",\n\t\t\tKEY idx_read_events_user (user_id),\n\t\t\tKEY idx_read_events_story (story_id)"
		chapterIdx = ",\n\t\t\tKEY idx_chapters_story (story_id)"
	}

	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stories (
			id %[1]s PRIMARY KEY,
			title %[2]s NOT NULL,
			description %[2]s,
			author_id %[1]s,
			likes_count BIGINT NOT NULL DEFAULT 0,
			embedding %[3]s,
			embedding_updated_at %[4]s,
			created_at %[4]s NOT NULL,
			updated_at %[4]s NOT NULL
		)`, d.idType, d.textType, d.vectorType(dims), d.timeType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chapters (
			id %[1]s PRIMARY KEY,
			story_id %[1]s NOT NULL,
			chapter_no INTEGER NOT NULL,
			content %[2]s NOT NULL%[3]s
		)`, d.idType, d.textType, chapterIdx),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS read_events (
			user_id %[1]s NOT NULL,
			story_id %[1]s NOT NULL,
			read_at %[2]s NOT NULL%[3]s
		)`, d.idType, d.timeType, readIdx),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS story_likes (
			user_id %[1]s NOT NULL,
			story_id %[1]s NOT NULL,
			created_at %[2]s NOT NULL,
			PRIMARY KEY (user_id, story_id)
		)`, d.idType, d.timeType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_similarities (
			user_id %[1]s NOT NULL,
			other_user_id %[1]s NOT NULL,
			score %[2]s NOT NULL,
			PRIMARY KEY (user_id, other_user_id)
		)`, d.idType, d.floatType),
	)

	if !d.indexesInline {
		stmts = append(stmts,
			"CREATE INDEX IF NOT EXISTS idx_read_events_user ON read_events (user_id)",
			"CREATE INDEX IF NOT EXISTS idx_read_events_story ON read_events (story_id)",
			"CREATE INDEX IF NOT EXISTS idx_chapters_story ON chapters (story_id)",
		)
	}
	return stmts
}

var (
	registerOnce   sync.Once
	tracedDrivers  map[string]string
	errRegistering error
)

// driverName returns the database/sql driver to open. PostgreSQL and MySQL
// connections are wrapped with otelsql tracing.
func driverName(name string) (string, error) {
	registerOnce.Do(func() {
		tracedDrivers = make(map[string]string, 2)

		pg, err := otelsql.Register(DriverPostgres,
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
		)
		if err != nil {
			errRegistering = fmt.Errorf("register traced postgres driver: %w", err)
			return
		}
		tracedDrivers[DriverPostgres] = pg

		my, err := otelsql.Register(DriverMySQL,
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(semconv.DBSystemMySQL),
		)
		if err != nil {
			errRegistering = fmt.Errorf("register traced mysql driver: %w", err)
			return
		}
		tracedDrivers[DriverMySQL] = my
	})

	if traced, ok := tracedDrivers[name]; ok {
		return traced, nil
	}
	if errRegistering != nil && (name == DriverPostgres || name == DriverMySQL) {
		return "", errRegistering
	}
	return name, nil
}

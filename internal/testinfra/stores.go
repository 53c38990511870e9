// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultPostgresImage ships PostgreSQL with the pgvector extension.
	DefaultPostgresImage = "pgvector/pgvector:pg16"

	// DefaultMySQLImage is the MySQL server image.
	DefaultMySQLImage = "mysql:8.4"

	// DefaultRedisImage is the Redis server image.
	DefaultRedisImage = "redis:7-alpine"

	testDatabase = "stellar"
	testUser     = "stellar"
	testPassword = "stellar-test"
)

// StartPostgres starts a pgvector-enabled PostgreSQL container and returns a
// lib/pq DSN for it. The container is terminated when the test ends.
func StartPostgres(t *testing.T) string {
	t.Helper()
	SkipIfNoDocker(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        DefaultPostgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       testDatabase,
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
			},
			// Postgres restarts once after initdb; wait for the second ready line.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
		Logger:  NewContainerLogger(t),
	})
	CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	addr, err := endpoint(ctx, container, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres endpoint: %v", err)
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", testUser, testPassword, addr, testDatabase)
}

// StartMySQL starts a MySQL container and returns a go-sql-driver DSN.
func StartMySQL(t *testing.T) string {
	t.Helper()
	SkipIfNoDocker(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        DefaultMySQLImage,
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_DATABASE":      testDatabase,
				"MYSQL_USER":          testUser,
				"MYSQL_PASSWORD":      testPassword,
				"MYSQL_ROOT_PASSWORD": testPassword,
			},
			WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(120 * time.Second),
		},
		Started: true,
		Logger:  NewContainerLogger(t),
	})
	CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("start mysql container: %v", err)
	}

	addr, err := endpoint(ctx, container, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql endpoint: %v", err)
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", testUser, testPassword, addr, testDatabase)
}

// StartRedis starts a Redis container and returns its host:port.
func StartRedis(t *testing.T) string {
	t.Helper()
	SkipIfNoDocker(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        DefaultRedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
		Logger:  NewContainerLogger(t),
	})
	CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}

	addr, err := endpoint(ctx, container, "6379/tcp")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	return addr
}

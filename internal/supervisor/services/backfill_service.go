// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/indexer"
)

// Backfiller embeds stories that have no embedding yet.
// Satisfied by *indexer.Indexer.
type Backfiller interface {
	Backfill(ctx context.Context) (indexer.Report, error)
}

// BackfillConfig configures the backfill schedule.
type BackfillConfig struct {
	// Schedule is a standard five-field cron expression or a descriptor
	// such as "@every 15m".
	Schedule string

	// OnStartup runs one backfill as soon as the service starts.
	OnStartup bool
}

// BackfillService runs the embedding backfill on a cron schedule. Overlapping
// runs are skipped and panics inside a run are recovered by the cron chain.
type BackfillService struct {
	backfiller Backfiller
	config     BackfillConfig
	logger     zerolog.Logger
}

// NewBackfillService validates the schedule and creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBackfillService(backfiller Backfiller, config BackfillConfig, logger zerolog.Logger) (*BackfillService, error) {
	if backfiller == nil {
		return nil, fmt.Errorf("backfiller required")
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid backfill schedule %q: %w", config.Schedule, err)
	}
	return &BackfillService{
		backfiller: backfiller,
		config:     config,
		logger:     logger.With().Str("service", "embedding-backfill").Logger(),
	}, nil
}

// Serve implements suture.Service.
func (s *BackfillService) Serve(ctx context.Context) error {
	cl := cronLogger{logger: s.logger}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))

	if _, err := c.AddFunc(s.config.Schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("schedule backfill: %w", err)
	}

	if s.config.OnStartup {
		s.run(ctx)
	}

	c.Start()
	s.logger.Info().Str("schedule", s.config.Schedule).Msg("Embedding backfill scheduled")

	<-ctx.Done()

	// Stop returns a context that is done once running jobs finish.
	<-c.Stop().Done()
	s.logger.Info().Msg("Embedding backfill stopped")
	return ctx.Err()
}

func (s *BackfillService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.backfiller.Backfill(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Embedding backfill failed")
		return
	}
	s.logger.Info().
		Int("embedded", report.Embedded).
		Int("rejected", report.Rejected).
		Int("empty", report.Empty).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Embedding backfill completed")
}

// String identifies the service in supervisor logs.
func (s *BackfillService) String() string {
	return "embedding-backfill"
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/carlulsoe/stellar-spire/internal/api"
	"github.com/carlulsoe/stellar-spire/internal/app"
	"github.com/carlulsoe/stellar-spire/internal/config"
	"github.com/carlulsoe/stellar-spire/internal/logging"
	"github.com/carlulsoe/stellar-spire/internal/metrics"
	"github.com/carlulsoe/stellar-spire/internal/supervisor"
	"github.com/carlulsoe/stellar-spire/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// flags are the server's command-line options.
type flags struct {
	Config  string           `help:"Path to a YAML config file (default ./config.yaml)." type:"path" env:"CONFIG_PATH"`
	Version kong.VersionFlag `help:"Print the version and exit."`
}

func newParser(f *flags, opts ...kong.Option) (*kong.Kong, error) {
	return kong.New(f, append([]kong.Option{
		kong.Name("stellar-spire"),
		kong.Description("Story recommendation server."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	}, opts...)...)
}

func main() {
	var f flags
	parser, err := newParser(&f)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build command-line parser")
	}
	_, err = parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cfg, err := config.Load(f.Config)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.ForLogging())
	logger := logging.Logger()
	serverLog := logging.WithComponent("server")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	serverLog.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("store", cfg.Store.Driver).
		Str("embedding_backend", cfg.Embedding.Backend).
		Str("embedding_api_key", logging.MaskSecret(cfg.Embedding.APIKey)).
		Msg("Starting Stellar Spire")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	components, err := app.Open(openCtx, cfg, logger)
	openCancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer func() {
		if err := components.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing components")
		}
	}()

	router, err := api.NewRouter(cfg.ForAPI(), components.APIDependencies(), logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create API router")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.ForSupervisor())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))

	if components.Counters != nil && cfg.Redis.WarmOnStartup {
		tree.AddDataService(services.NewPopularityWarmService(components.Counters, time.Minute, logger))
		serverLog.Info().Msg("Popularity warm-up added to supervisor tree")
	}

	if cfg.Indexer.BackfillEnabled {
		backfill, err := services.NewBackfillService(components.Indexer, cfg.ForBackfill(), logger)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create backfill service")
		}
		tree.AddDataService(backfill)
		serverLog.Info().Str("schedule", cfg.Indexer.BackfillSchedule).Msg("Embedding backfill added to supervisor tree")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		serverLog.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	startTime := time.Now()
	uptimeDone := make(chan struct{})
	go trackUptime(ctx, startTime, uptimeDone)

	serverLog.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		serverLog.Error().Err(err).Msg("Supervisor tree stopped with error")
	}
	cancel()
	<-uptimeDone

	unstopped, err := tree.UnstoppedServiceReport()
	if err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			serverLog.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	serverLog.Info().Dur("uptime", time.Since(startTime)).Msg("Stellar Spire stopped")
}

// trackUptime updates the uptime gauge until ctx is canceled.
func trackUptime(ctx context.Context, start time.Time, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/app"
	"github.com/carlulsoe/stellar-spire/internal/config"
	"github.com/carlulsoe/stellar-spire/internal/logging"
)

// cli is the spirectl command tree.
type cli struct {
	Config   string        `help:"Path to a YAML config file." type:"path" env:"CONFIG_PATH"`
	LogLevel string        `help:"Log level." default:"warn" enum:"trace,debug,info,warn,error"`
	Timeout  time.Duration `help:"Overall command timeout." default:"2m"`

	Recommend recommendCmd `cmd:"" help:"Print recommendations for a reader."`
	Popular   popularCmd   `cmd:"" help:"Print the most popular stories."`
	Reindex   reindexCmd   `cmd:"" help:"Recompute story embeddings."`
	Classify  classifyCmd  `cmd:"" help:"Score text against the content policy."`
	Read      readCmd      `cmd:"" help:"Record that a reader read a story."`
	Like      likeCmd      `cmd:"" help:"Toggle a reader's like on a story."`
	Migrate   migrateCmd   `cmd:"" help:"Create missing store tables."`
}

// runContext is passed to every command's Run method.
type runContext struct {
	ctx    context.Context
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
}

// open builds the full component graph for commands that need it.
func (rc *runContext) open() (*app.App, error) {
	return app.Open(rc.ctx, rc.cfg, rc.logger)
}

// print writes v as indented JSON.
func (rc *runContext) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rc.out, string(data))
	return err
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("spirectl"),
		kong.Description("Operate a Stellar Spire recommendation store."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(c.Config)
	kctx.FatalIfErrorf(err)

	logCfg := cfg.ForLogging()
	logCfg.Level = c.LogLevel
	logCfg.Format = "console"
	logging.Init(logCfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, c.Timeout)
	defer cancelTimeout()

	err = kctx.Run(&runContext{
		ctx:    ctx,
		cfg:    cfg,
		logger: logging.Logger(),
		out:    os.Stdout,
	})
	kctx.FatalIfErrorf(err)
}

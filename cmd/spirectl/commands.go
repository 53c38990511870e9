// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/store/sqlstore"
)

type recommendCmd struct {
	User   string `help:"Reader ID." required:""`
	K      int    `help:"Number of stories." default:"10"`
	Source string `help:"Popularity source." placeholder:"reads|likes"`
}

func (c *recommendCmd) Run(rc *runContext) error {
	a, err := rc.open()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Engine.Recommend(rc.ctx, recommend.Request{
		UserID: c.User,
		K:      c.K,
		Source: recommend.PopularitySource(c.Source),
	})
	if err != nil {
		return err
	}
	return rc.print(resp)
}

type popularCmd struct {
	K      int    `help:"Number of stories." default:"10"`
	Source string `help:"Popularity source." placeholder:"reads|likes"`
}

func (c *popularCmd) Run(rc *runContext) error {
	a, err := rc.open()
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.Engine.Popular(rc.ctx, c.K, recommend.PopularitySource(c.Source))
	if err != nil {
		return err
	}
	return rc.print(items)
}

type reindexCmd struct {
	Story   []string `help:"Story IDs to re-embed." xor:"target"`
	Missing bool     `help:"Embed every story that has no embedding." xor:"target"`
}

func (c *reindexCmd) Validate() error {
	if len(c.Story) == 0 && !c.Missing {
		return errors.New("one of --story or --missing is required")
	}
	return nil
}

func (c *reindexCmd) Run(rc *runContext) error {
	a, err := rc.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Missing {
		report, err := a.Indexer.Backfill(rc.ctx)
		if err != nil {
			return err
		}
		return rc.print(report)
	}

	var errs []error
	for _, id := range c.Story {
		res, err := a.Indexer.Reindex(rc.ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		if err := rc.print(res); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

type classifyCmd struct {
	Text []string `arg:"" help:"Text to classify."`
}

func (c *classifyCmd) Run(rc *runContext) error {
	a, err := rc.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Classifier == nil {
		return errors.New("content safety is not enabled (set safety.enabled)")
	}
	verdict, err := a.Classifier.Classify(rc.ctx, strings.Join(c.Text, " "))
	if err != nil {
		return err
	}
	return rc.print(verdict)
}

type readCmd struct {
	User  string `help:"Reader ID." required:""`
	Story string `help:"Story ID." required:""`
}

func (c *readCmd) Run(rc *runContext) error {
	a, err := rc.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ev := recommend.ReadEvent{UserID: c.User, StoryID: c.Story, ReadAt: time.Now().UTC()}
	if err := a.Interactions().RecordRead(rc.ctx, ev); err != nil {
		return err
	}
	return rc.print(ev)
}

type likeCmd struct {
	User  string `help:"Reader ID." required:""`
	Story string `help:"Story ID." required:""`
}

func (c *likeCmd) Run(rc *runContext) error {
	a, err := rc.open()
	if err != nil {
		return err
	}
	defer a.Close()

	liked, count, err := a.Interactions().ToggleLike(rc.ctx, c.User, c.Story)
	if err != nil {
		return err
	}
	return rc.print(map[string]any{"story_id": c.Story, "liked": liked, "likes_count": count})
}

// migrateCmd only needs the store, so it skips the embedding provider.
type migrateCmd struct{}

func (c *migrateCmd) Run(rc *runContext) error {
	storeCfg := rc.cfg.ForStore()
	storeCfg.AutoMigrate = false

	s, err := sqlstore.Open(rc.ctx, storeCfg, rc.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Migrate(rc.ctx); err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "store schema is current (%s)\n", s.Driver())
	return nil
}

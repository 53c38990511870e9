// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package services wraps long-running components as suture.Service values.
//
//   - HTTPServerService: net/http server with graceful shutdown
//   - BackfillService: cron-scheduled embedding backfill (robfig/cron)
//   - PopularityWarmService: keeps Redis popularity counters seeded
//
// Every service returns ctx.Err() when its context is canceled and
// implements fmt.Stringer so supervisor events name it.
package services

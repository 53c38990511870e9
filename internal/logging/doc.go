// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package logging provides the process-wide zerolog logger.
//
// Call Init once from main with the logging section of the configuration.
// Components receive a zerolog.Logger and derive their own with
// With().Str("component", ...). Request-scoped code uses Ctx(ctx), which
// attaches the request_id and correlation_id stored by the HTTP middleware.
//
//	logging.Init(logging.Config{Level: "debug", Format: "console"})
//	logging.Ctx(ctx).Info().Str("user_id", uid).Msg("recommendation served")
//
// SlogHandler adapts the logger for libraries that only accept *slog.Logger,
// such as the suture event hook.
package logging

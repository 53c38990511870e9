// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Command spirectl runs one-off operations against the configured store and
// models, using the same configuration as the server.
//
//	spirectl migrate
//	spirectl recommend --user reader-42 --k 5
//	spirectl popular --k 20 --source likes
//	spirectl reindex --story s1 --story s2
//	spirectl reindex --missing
//	spirectl classify "some chapter text"
//	spirectl read --user reader-42 --story s7
//	spirectl like --user reader-42 --story s7
package main

// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package safety classifies story text for toxicity.
//
// A Backend returns raw scores for six categories (toxic, severe_toxic,
// obscene, threat, insult, identity_hate); the Classifier applies a
// threshold Policy and returns a Verdict. A category is flagged when its
// score exceeds the threshold, and text is acceptable when nothing is
// flagged. Backends: a text-classification server (http), the OpenAI
// moderation endpoint (openai) and a Claude judge prompt (anthropic).
package safety

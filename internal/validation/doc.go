// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

// Package validation wraps go-playground/validator v10 with a shared,
// lazily built instance used for API request bodies and configuration.
//
//	type RecordReadRequest struct {
//	    UserID string `json:"user_id" validate:"required,notblank,max=128"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    // respond 400 with apiErr.Code / apiErr.Message
//	}
//
// Field names in messages come from json tags, then koanf tags, so a bad
// configuration value is reported as e.g. "store.dsn is required".
package validation

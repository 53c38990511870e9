// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/carlulsoe/stellar-spire/internal/indexer"
	"github.com/carlulsoe/stellar-spire/internal/recommend"
	"github.com/carlulsoe/stellar-spire/internal/safety"
	"github.com/carlulsoe/stellar-spire/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeBadRequest             = "BAD_REQUEST"
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeMethodNotAllowed       = "METHOD_NOT_ALLOWED"
	ErrCodePayloadTooLarge        = "PAYLOAD_TOO_LARGE"
	ErrCodeContentRejected        = "CONTENT_REJECTED"
	ErrCodeTooManyRequests        = "TOO_MANY_REQUESTS"
	ErrCodeInternalError          = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable     = "SERVICE_UNAVAILABLE"
	ErrCodeStoreUnavailable       = "STORE_UNAVAILABLE"
	ErrCodeModelUnavailable       = "MODEL_UNAVAILABLE"
	ErrCodeClassifierUnavailable  = "CLASSIFIER_UNAVAILABLE"
	ErrCodeTimeout                = "TIMEOUT"
	ErrCodeFeatureNotConfigured   = "NOT_CONFIGURED"
	ErrCodeRecommendationsFailure = "RECOMMENDATION_UNAVAILABLE"
)

type mappedError struct {
	status  int
	code    string
	message string
	details interface{}
}

// mapError translates the shared error taxonomy into HTTP terms. Messages of
// server-side failures are generic; the cause is only logged.
func mapError(err error) mappedError {
	var verr *validation.RequestValidationError
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &verr):
		apiErr := verr.ToAPIError()
		return mappedError{http.StatusBadRequest, ErrCodeValidation, apiErr.Message, apiErr.Details}
	case errors.As(err, &maxBytes):
		return mappedError{status: http.StatusRequestEntityTooLarge, code: ErrCodePayloadTooLarge, message: "request body too large"}
	case errors.Is(err, indexer.ErrContentRejected):
		return mappedError{status: http.StatusUnprocessableEntity, code: ErrCodeContentRejected, message: err.Error()}
	case errors.Is(err, recommend.ErrInvalidArgument):
		return mappedError{status: http.StatusBadRequest, code: ErrCodeBadRequest, message: err.Error()}
	case errors.Is(err, recommend.ErrNotFound):
		return mappedError{status: http.StatusNotFound, code: ErrCodeNotFound, message: err.Error()}
	case errors.Is(err, recommend.ErrStoreUnavailable):
		return mappedError{status: http.StatusServiceUnavailable, code: ErrCodeStoreUnavailable, message: "interaction store unavailable"}
	case errors.Is(err, recommend.ErrModelUnavailable):
		return mappedError{status: http.StatusServiceUnavailable, code: ErrCodeModelUnavailable, message: "embedding model unavailable"}
	case errors.Is(err, safety.ErrUnavailable):
		return mappedError{status: http.StatusServiceUnavailable, code: ErrCodeClassifierUnavailable, message: "content classifier unavailable"}
	case errors.Is(err, recommend.ErrRecommendationUnavailable):
		return mappedError{status: http.StatusServiceUnavailable, code: ErrCodeRecommendationsFailure, message: "recommendations unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return mappedError{status: http.StatusGatewayTimeout, code: ErrCodeTimeout, message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return mappedError{status: http.StatusServiceUnavailable, code: ErrCodeServiceUnavailable, message: "request canceled"}
	default:
		return mappedError{status: http.StatusInternalServerError, code: ErrCodeInternalError, message: "internal server error"}
	}
}

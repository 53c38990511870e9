// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

/*
Package api exposes the recommendation service over HTTP using chi.

Routes:

	GET  /api/v1/recommendations/user/{userID}?k=&source=
	GET  /api/v1/stories/popular?k=&source=
	POST /api/v1/stories/{storyID}/reads       {"user_id": "..."}
	POST /api/v1/stories/{storyID}/likes       {"user_id": "..."}
	POST /api/v1/stories/{storyID}/embedding
	POST /api/v1/safety/classify               {"text": "..."}
	GET  /api/v1/health/live
	GET  /api/v1/health/ready
	GET  /metrics

Every JSON response uses the APIResponse envelope. Errors from the shared
taxonomy map to status codes in mapError: invalid arguments and validation
failures are 400, missing stories 404, rejected content 422, unavailable
store, model or classifier 503.

Rate limiting (go-chi/httprate) is per client IP; CORS is handled by
go-chi/cors.
*/
package api

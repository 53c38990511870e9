// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status string            `json:"status"`
	Uptime float64           `json:"uptime_seconds"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthLive handles GET /api/v1/health/live. It only reports that the
// process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status: "alive",
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready. Checks run concurrently,
// each bounded by the ready timeout.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.deps.Checks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, check := range h.deps.Checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), h.cfg.ReadyTimeout)
			defer cancel()

			status := "ok"
			if err := c.Check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[c.Name] = status
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	ready := true
	for _, s := range results {
		if s != "ok" {
			ready = false
			break
		}
	}

	body := HealthStatus{Status: "ready", Uptime: time.Since(h.startTime).Seconds(), Checks: results}
	rw := NewResponseWriter(w, r)
	if !ready {
		body.Status = "not_ready"
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "one or more dependencies are not ready", body)
		return
	}
	rw.Success(body)
}

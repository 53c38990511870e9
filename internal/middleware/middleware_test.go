// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/logging"
	"github.com/carlulsoe/stellar-spire/internal/metrics"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		header    string
		wantReuse bool
	}{
		{"generates when absent", "", false},
		{"reuses upstream id", "proxy-abc-123", true},
		{"rejects whitespace", "bad id", false},
		{"rejects control characters", "id\nforged", false},
		{"rejects oversized", strings.Repeat("x", maxRequestIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seenID, seenCorrelation string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenID = GetRequestID(r.Context())
				seenCorrelation = logging.CorrelationIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seenID == "" {
				t.Fatal("request ID missing from context")
			}
			if got := rec.Header().Get(RequestIDHeader); got != seenID {
				t.Errorf("response header = %q, context = %q", got, seenID)
			}
			if (seenID == tt.header) != tt.wantReuse {
				t.Errorf("request ID = %q, reuse = %v", seenID, tt.wantReuse)
			}
			if seenCorrelation == "" {
				t.Error("correlation ID missing from context")
			}
		})
	}
}

func TestRequestID_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	handler := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		id := rec.Header().Get(RequestIDHeader)
		if seen[id] {
			t.Fatalf("duplicate request ID %q", id)
		}
		seen[id] = true
	}
}

func TestPrometheusMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Post("/test-metrics/{id}/reads", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodPost, "/test-metrics/{id}/reads", "201")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test-metrics/"+id+"/reads", nil))
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("requests recorded under route pattern = %v, want 3", got)
	}
}

func TestPrometheusMetrics_Unmatched(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/known", func(http.ResponseWriter, *http.Request) {})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("unmatched requests recorded = %v, want 1", got)
	}
}

func TestAccessLog(t *testing.T) {
	// The logging package raises the global level to info at init.
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	tests := []struct {
		name      string
		status    int
		delay     time.Duration
		wantLevel string
	}{
		{"ok at debug", http.StatusOK, 0, `"level":"debug"`},
		{"server error at error", http.StatusBadGateway, 0, `"level":"error"`},
		{"slow at warn", http.StatusOK, 20 * time.Millisecond, `"slow":true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

			var fromCtx bool
			handler := RequestID(AccessLog(logger, 10*time.Millisecond)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					fromCtx = logging.RequestIDFromContext(r.Context()) != ""
					logging.Ctx(r.Context()).Info().Msg("inside handler")
					time.Sleep(tt.delay)
					w.WriteHeader(tt.status)
				})))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stories/popular", nil))

			out := buf.String()
			if !fromCtx {
				t.Error("request ID not visible to handler")
			}
			if !strings.Contains(out, `"message":"inside handler"`) {
				t.Errorf("handler log not written through request logger: %s", out)
			}
			if !strings.Contains(out, `"request_id":"`+rec.Header().Get(RequestIDHeader)+`"`) {
				t.Errorf("access log missing request_id: %s", out)
			}
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("access log = %s, want %s", out, tt.wantLevel)
			}
		})
	}
}

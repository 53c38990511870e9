// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{"successful history read", "read_history", "read_events", 10 * time.Millisecond, nil},
		{"successful embedding write", "update_embedding", "stories", 5 * time.Millisecond, nil},
		{"connection failure", "popularity", "story_likes", 100 * time.Millisecond, errors.New("connection refused")},
		{"timeout", "stories", "stories", time.Second, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table, ErrorType(tt.err)))
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
			after := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table, ErrorType(tt.err)))

			want := 0.0
			if tt.err != nil {
				want = 1
			}
			if after-before != want {
				t.Errorf("error counter delta = %v, want %v", after-before, want)
			}
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/recommendations", "200"))
	RecordAPIRequest("GET", "/api/v1/recommendations", "200", 25*time.Millisecond)
	RecordAPIRequest("GET", "/api/v1/recommendations", "200", 30*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/recommendations", "200"))

	if after-before != 2 {
		t.Errorf("api_requests_total delta = %v, want 2", after-before)
	}
}

func TestTrackActiveRequest_RequestLifecycle(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)
	for i := 0; i < 10; i++ {
		TrackActiveRequest(true)
	}
	if got := testutil.ToFloat64(APIActiveRequests) - start; got != 10 {
		t.Errorf("active requests = %v, want 10", got)
	}
	for i := 0; i < 10; i++ {
		TrackActiveRequest(false)
	}
	if got := testutil.ToFloat64(APIActiveRequests); got != start {
		t.Errorf("active requests = %v, want %v", got, start)
	}
}

func TestRecordRecommendation(t *testing.T) {
	personalized := testutil.ToFloat64(RecommendationRequests.WithLabelValues("personalized"))
	popularity := testutil.ToFloat64(RecommendationRequests.WithLabelValues("popularity"))
	timeouts := testutil.ToFloat64(RecommendationFallbacks.WithLabelValues("timeout"))

	RecordRecommendation("personalized", "", 120, 40*time.Millisecond)
	RecordRecommendation("popularity", "timeout", 0, 3*time.Second)

	if d := testutil.ToFloat64(RecommendationRequests.WithLabelValues("personalized")) - personalized; d != 1 {
		t.Errorf("personalized delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(RecommendationRequests.WithLabelValues("popularity")) - popularity; d != 1 {
		t.Errorf("popularity delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(RecommendationFallbacks.WithLabelValues("timeout")) - timeouts; d != 1 {
		t.Errorf("timeout fallback delta = %v, want 1", d)
	}
}

func TestRecordSafetyVerdict(t *testing.T) {
	before := testutil.ToFloat64(SafetyFlags.WithLabelValues("threat"))
	RecordSafetyVerdict("openai", false, []string{"threat", "insult"})
	RecordSafetyVerdict("openai", true, nil)

	if d := testutil.ToFloat64(SafetyFlags.WithLabelValues("threat")) - before; d != 1 {
		t.Errorf("threat flag delta = %v, want 1", d)
	}
}

func TestRecordIndexerRun(t *testing.T) {
	before := testutil.ToFloat64(IndexerStoriesEmbedded)
	RecordIndexerRun("backfill", 7, nil)
	RecordIndexerRun("api", 0, errors.New("model unavailable"))

	if d := testutil.ToFloat64(IndexerStoriesEmbedded) - before; d != 7 {
		t.Errorf("stories embedded delta = %v, want 7", d)
	}
	if testutil.ToFloat64(IndexerLastSuccess) == 0 {
		t.Error("last success timestamp not set after backfill")
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("recommend: %w", context.Canceled), "canceled"},
		{errors.New("invalid argument: k must be positive"), "invalid_argument"},
		{errors.New("story not found"), "not_found"},
		{errors.New("store unavailable: dial tcp"), "unavailable"},
		{errors.New("connection reset by peer"), "connection"},
		{errors.New("syntax error"), "other"},
	}

	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCircuitBreakerMetrics(t *testing.T) {
	cbName := "embedding_openai"

	CircuitBreakerState.WithLabelValues(cbName).Set(2)
	CircuitBreakerRequests.WithLabelValues(cbName, "rejected").Inc()
	CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(5)
	CircuitBreakerTransitions.WithLabelValues(cbName, "closed", "open").Inc()

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues(cbName)); got != 2 {
		t.Errorf("state = %v, want 2", got)
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordEmbedding("openai", "success", time.Millisecond)
				RecordCacheLookup("memory", j%2 == 0)
				RecordDBQuery("stories", "stories", time.Millisecond, nil)
			}
		}(i)
	}
	wg.Wait()
}

func TestMetricsRegistration(t *testing.T) {
	metrics := []prometheus.Collector{
		DBQueryDuration,
		DBQueryErrors,
		DBOpenConnections,
		CounterOperations,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveRequests,
		APIRateLimitHits,
		RecommendationRequests,
		RecommendationFallbacks,
		RecommendationErrors,
		RecommendationDuration,
		RecommendationCandidates,
		EmbeddingRequests,
		EmbeddingDuration,
		CacheHits,
		CacheMisses,
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerConsecutiveFailures,
		CircuitBreakerTransitions,
		SafetyVerdicts,
		SafetyFlags,
		IndexerRuns,
		IndexerStoriesEmbedded,
		IndexerLastSuccess,
		AppInfo,
		AppUptime,
	}

	for _, m := range metrics {
		ch := make(chan *prometheus.Desc, 10)
		m.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("Metric has no descriptors")
		}
	}
}

func TestMetricGathering(t *testing.T) {
	RecordDBQuery("TEST", "test_table", time.Millisecond, nil)
	RecordAPIRequest("GET", "/test", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}

func BenchmarkRecordDBQuery(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordDBQuery("read_history", "read_events", 10*time.Millisecond, nil)
	}
}

func BenchmarkRecordRecommendation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordRecommendation("personalized", "", 50, 10*time.Millisecond)
	}
}

// histogramCount returns the number of observations in a histogram.
func histogramCount(t *testing.T, h prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := h.(prometheus.Metric)
	if !ok {
		t.Fatalf("%T is not a prometheus.Metric", h)
	}
	var m io_prometheus_client.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordRecommendation_Histograms(t *testing.T) {
	durBefore := histogramCount(t, RecommendationDuration.WithLabelValues("popularity"))
	candBefore := histogramCount(t, RecommendationCandidates)

	RecordRecommendation("popularity", "timeout", 12, 40*time.Millisecond)

	if got := histogramCount(t, RecommendationDuration.WithLabelValues("popularity")) - durBefore; got != 1 {
		t.Errorf("duration observations = %d, want 1", got)
	}
	if got := histogramCount(t, RecommendationCandidates) - candBefore; got != 1 {
		t.Errorf("candidate observations = %d, want 1", got)
	}
}

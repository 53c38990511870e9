// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package algorithms

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlulsoe/stellar-spire/internal/recommend"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) time.Time {
	return testNow.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

func TestProfileBuilder_Weight(t *testing.T) {
	b := NewProfileBuilder(2, zerolog.Nop())

	tests := []struct {
		name string
		age  float64
		want float64
	}{
		{"now", 0, 1},
		{"thirty days", 30, math.Exp(-1)},
		{"sixty days", 60, math.Exp(-2)},
		{"half a day", 0.5, math.Exp(-0.5 / 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Weight(daysAgo(tt.age), testNow)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Weight(age=%v) = %f, want %f", tt.age, got, tt.want)
			}
		})
	}

	t.Run("future reads weigh more than now", func(t *testing.T) {
		want := math.Exp(1.0 / 24 / 30)
		if got := b.Weight(testNow.Add(time.Hour), testNow); math.Abs(got-want) > 1e-12 {
			t.Errorf("Weight(future) = %f, want %f", got, want)
		}
	})

	t.Run("strictly decreasing with age", func(t *testing.T) {
		prev := b.Weight(daysAgo(-30), testNow)
		for d := -29; d <= 365; d++ {
			w := b.Weight(daysAgo(float64(d)), testNow)
			if w >= prev {
				t.Fatalf("Weight(%d days) = %f, not below %f", d, w, prev)
			}
			prev = w
		}
	})
}

func TestProfileBuilder_Build(t *testing.T) {
	b := NewProfileBuilder(2, zerolog.Nop())

	tests := []struct {
		name    string
		history []recommend.HistoryEntry
		wantOK  bool
		want    []float64
	}{
		{
			name:    "empty history",
			history: nil,
			wantOK:  false,
		},
		{
			name: "no embeddings",
			history: []recommend.HistoryEntry{
				{StoryID: "a", ReadAt: testNow},
			},
			wantOK: false,
		},
		{
			name: "single entry is its own profile",
			history: []recommend.HistoryEntry{
				{StoryID: "a", ReadAt: daysAgo(10), Embedding: []float32{0.6, 0.8}},
			},
			wantOK: true,
			want:   []float64{0.6, 0.8},
		},
		{
			name: "equal ages average",
			history: []recommend.HistoryEntry{
				{StoryID: "a", ReadAt: testNow, Embedding: []float32{1, 0}},
				{StoryID: "b", ReadAt: testNow, Embedding: []float32{0, 1}},
			},
			wantOK: true,
			want:   []float64{0.5, 0.5},
		},
		{
			name: "recent reads dominate",
			history: []recommend.HistoryEntry{
				{StoryID: "a", ReadAt: testNow, Embedding: []float32{1, 0}},
				{StoryID: "b", ReadAt: daysAgo(30), Embedding: []float32{0, 1}},
			},
			wantOK: true,
			want:   []float64{1 / (1 + math.Exp(-1)), math.Exp(-1) / (1 + math.Exp(-1))},
		},
		{
			name: "invalid embeddings are skipped",
			history: []recommend.HistoryEntry{
				{StoryID: "a", ReadAt: testNow, Embedding: []float32{1, 0}},
				{StoryID: "b", ReadAt: testNow, Embedding: []float32{0, 1, 0}},
				{StoryID: "c", ReadAt: testNow, Embedding: []float32{float32(math.NaN()), 1}},
				{StoryID: "d", ReadAt: testNow},
			},
			wantOK: true,
			want:   []float64{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, ok := b.Build(tt.history, testNow)
			if ok != tt.wantOK {
				t.Fatalf("Build() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if len(profile.Vector) != len(tt.want) {
				t.Fatalf("len(Vector) = %d, want %d", len(profile.Vector), len(tt.want))
			}
			for i := range tt.want {
				if math.Abs(profile.Vector[i]-tt.want[i]) > 1e-6 {
					t.Errorf("Vector[%d] = %f, want %f", i, profile.Vector[i], tt.want[i])
				}
			}
		})
	}
}

func TestProfileBuilder_WarnsOnSkippedEntries(t *testing.T) {
	var buf bytes.Buffer
	b := NewProfileBuilder(2, zerolog.New(&buf))

	_, ok := b.Build([]recommend.HistoryEntry{
		{StoryID: "a", ReadAt: testNow, Embedding: []float32{1, 0}},
		{StoryID: "b", ReadAt: testNow},
		{StoryID: "c", ReadAt: testNow},
		{StoryID: "d", ReadAt: testNow, Embedding: []float32{1, 0, 0}},
	}, testNow)
	if !ok {
		t.Fatal("Build() ok = false, want true")
	}

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"missing":2`, `"invalid":1`} {
		if !strings.Contains(out, want) {
			t.Errorf("warning missing %s: %s", want, out)
		}
	}

	buf.Reset()
	b.Build([]recommend.HistoryEntry{{StoryID: "a", ReadAt: testNow, Embedding: []float32{1, 0}}}, testNow)
	if buf.Len() != 0 {
		t.Errorf("unexpected log for clean history: %s", buf.String())
	}
}

func TestProfileBuilder_Deterministic(t *testing.T) {
	b := NewProfileBuilder(3, zerolog.Nop())
	history := []recommend.HistoryEntry{
		{StoryID: "a", ReadAt: daysAgo(1), Embedding: []float32{0.1, 0.2, 0.3}},
		{StoryID: "b", ReadAt: daysAgo(40), Embedding: []float32{0.3, 0.2, 0.1}},
		{StoryID: "c", ReadAt: daysAgo(200), Embedding: []float32{0.5, 0.5, 0.5}},
	}

	first, _ := b.Build(history, testNow)
	for i := 0; i < 5; i++ {
		again, _ := b.Build(history, testNow)
		for j := range first.Vector {
			if first.Vector[j] != again.Vector[j] {
				t.Fatalf("Build() is not deterministic at %d: %v != %v", j, first.Vector, again.Vector)
			}
		}
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.3, 0.4}, []float32{0.3, 0.4}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine() = %f, want %f", got, tt.want)
			}
			if got < -1-1e-9 || got > 1+1e-9 {
				t.Errorf("Cosine() = %f out of [-1, 1]", got)
			}
		})
	}
}

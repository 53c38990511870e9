// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package algorithms

import "math"

// cosineSimilarity computes cosine similarity between a float64 profile and a
// float32 embedding. Returns 0 when either vector has zero norm or the
// lengths differ.
func cosineSimilarity(a []float64, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		bi := float64(b[i])
		dot += a[i] * bi
		normA += a[i] * a[i]
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Cosine computes cosine similarity between two embeddings.
// Returns 0 for zero-norm or mismatched vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// validEmbedding reports whether v has the expected length and only finite values.
func validEmbedding(v []float32, dims int) bool {
	if len(v) == 0 || (dims > 0 && len(v) != dims) {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Package embedding contains Embedder implementations at the interface
// boundary of the runtime. Production deployments plug a real embedding
// provider; the hash embedder below is a deterministic local stand-in
// suitable for development and tests.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder generates deterministic embeddings from a text hash. Same
// input, same vector; no external model required. Similarity is only
// meaningful for identical texts, which is sufficient for exact round trips
// and duplicate detection in local setups.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder with the given vector size.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed creates a deterministic unit vector from the text hash.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	// LCG seeded by the hash gives a stable pseudo-random vector.
	seed := h.Sum64()
	vec := make([]float32, e.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

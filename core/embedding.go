package core

import "context"

// Embedder converts text to a vector. It is an implementation detail of the
// vector store wiring; the invocation engine never interacts with it
// directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

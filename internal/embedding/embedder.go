// Package embedding provides text embedding backends and caching.
package embedding

import "context"

// Embedder produces fixed-width vector embeddings for text. Implementations are
// stateless from the caller's perspective and safe for concurrent use; retries
// and timeouts belong to the caller.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

package embedding

import (
	"context"
	"math"

	"github.com/exilemind/buildsearch/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and local development.
// The same text always yields the same unit-norm vector, and texts sharing
// words produce correlated vectors, so similarity ordering is meaningful.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of the given width.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding: the sum of per-word hash vectors,
// normalized to unit length.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	words := tokenizeMock(text)
	if len(words) == 0 {
		words = []string{text}
	}
	for _, w := range words {
		h := HashString(w)
		for i := 0; i < e.dimensions; i++ {
			emb[i] += float32(math.Sin(float64(h)*float64(i+1)) * 0.1)
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

func tokenizeMock(text string) []string {
	var words []string
	word := make([]rune, 0, 16)
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			if r >= 'A' && r <= 'Z' {
				r += 'a' - 'A'
			}
			word = append(word, r)
		default:
			if len(word) > 0 {
				words = append(words, string(word))
				word = word[:0]
			}
		}
	}
	if len(word) > 0 {
		words = append(words, string(word))
	}
	return words
}

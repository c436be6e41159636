package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultOllamaURL is the local Ollama embeddings endpoint.
const DefaultOllamaURL = "http://localhost:11434/api/embeddings"

// OllamaEmbedder produces embeddings through a local Ollama server.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	cache      *Cache
}

// NewOllamaEmbedder creates an Ollama-backed embedder. baseURL defaults to the
// local Ollama endpoint when empty.
func NewOllamaEmbedder(baseURL, model string, dimensions, cacheSize int) (*OllamaEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embedder requires a model name")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("ollama embedder requires positive dimensions, got %d", dimensions)
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if cacheSize <= 0 {
		cacheSize = 1
	}
	return &OllamaEmbedder{
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		client:     http.DefaultClient,
		cache:      NewCache(cacheSize),
	}, nil
}

// Embed returns the embedding for text, using the cache when available.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	payload := map[string]interface{}{
		"model":  e.model,
		"prompt": text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status: %d", resp.StatusCode)
	}

	var result struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding")
	}

	embedding := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		embedding[i] = float32(v)
	}
	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedBatch calls Embed for each text; the Ollama embeddings endpoint is single-prompt.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

// Dimensions returns the configured embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for OllamaEmbedder.
func (e *OllamaEmbedder) Close() error {
	return nil
}

package embedding

import (
	"fmt"
	"os"

	"github.com/exilemind/buildsearch/internal/config"
)

// NewEmbedder constructs the embedding backend selected by cfg.Provider.
// Supported providers: "mock" (default), "onnx", "openai", "ollama".
func NewEmbedder(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "mock", "":
		return NewMockEmbedder(cfg.Dimensions), nil
	case "onnx":
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAIEmbedder(apiKey, cfg.Model, cfg.Dimensions, cfg.CacheSize)
	case "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, onnx, openai, ollama)", cfg.Provider)
	}
}

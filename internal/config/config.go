// Package config provides configuration loading and structs for the buildsearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the record database and index artifacts.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexDir     string `yaml:"index_dir"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	// Provider selects the backend: "mock", "onnx", "openai", or "ollama".
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"` // onnx
	Model      string `yaml:"model"`      // openai / ollama model name
	BaseURL    string `yaml:"base_url"`   // ollama
	APIKey     string `yaml:"api_key"`    // openai; ${OPENAI_API_KEY} when empty
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	// Batch vectorization settings.
	BatchChunkSize int `yaml:"batch_chunk_size"`
	Parallelism    int `yaml:"parallelism"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	// Metric is "cosine" or "euclidean"; fixed for the index lifetime.
	Metric string `yaml:"metric"`
	// Clusters caps nlist for clustered strategies (actual nlist = min(Clusters, N/10)).
	Clusters int `yaml:"clusters"`
	NProbe   int `yaml:"nprobe"`
	// RebuildThreshold refuses incremental adds when new/(old+new) exceeds it.
	RebuildThreshold float64 `yaml:"rebuild_threshold"`
	// Rotate enables the orthogonal pre-rotation before product quantization.
	Rotate bool `yaml:"rotate"`
}

// SearchConfig holds scoring, boost, and diversification settings.
type SearchConfig struct {
	MaxResults       int     `yaml:"max_results"`
	MinSimilarity    float64 `yaml:"min_similarity"`
	SimilarityWeight float64 `yaml:"similarity_weight"`
	PopularityWeight float64 `yaml:"popularity_weight"`
	QualityWeight    float64 `yaml:"quality_weight"`

	// BoostsEnabled defaults to true when unset.
	BoostsEnabled        *bool   `yaml:"boosts_enabled"`
	ClassAscendancyBoost float64 `yaml:"class_ascendancy_boost"`
	ClassBoost           float64 `yaml:"class_boost"`
	MainSkillBoost       float64 `yaml:"main_skill_boost"`
	GoalBoost            float64 `yaml:"goal_boost"`
	QualityBoost         float64 `yaml:"quality_boost"`
	PopularityBoost      float64 `yaml:"popularity_boost"`
	PopularityBoostRank  int     `yaml:"popularity_boost_rank"`

	// DiversifyEnabled defaults to true when unset.
	DiversifyEnabled   *bool `yaml:"diversify_enabled"`
	MaxSimilarPerGroup int   `yaml:"max_similar_per_group"`

	// VariantMinSimilarity is the stricter floor used by find-variants.
	VariantMinSimilarity float64 `yaml:"variant_min_similarity"`

	// MultiFeature enables weighted multi-group vectorization for records.
	// Defaults to true when unset.
	MultiFeature *bool `yaml:"multi_feature"`
}

// BoostsEnabledOrDefault returns whether boosts apply; defaults to true when unset.
func (s *SearchConfig) BoostsEnabledOrDefault() bool {
	if s.BoostsEnabled != nil {
		return *s.BoostsEnabled
	}
	return true
}

// DiversifyEnabledOrDefault returns whether diversification applies; defaults to true when unset.
func (s *SearchConfig) DiversifyEnabledOrDefault() bool {
	if s.DiversifyEnabled != nil {
		return *s.DiversifyEnabled
	}
	return true
}

// MultiFeatureOrDefault returns whether multi-feature vectorization applies;
// defaults to true when unset.
func (s *SearchConfig) MultiFeatureOrDefault() bool {
	if s.MultiFeature != nil {
		return *s.MultiFeature
	}
	return true
}

// WatchConfig holds records-directory ingest settings.
type WatchConfig struct {
	Directory string `yaml:"directory"`
	// DebounceMillis delays ingest after the last write event to a batch file.
	DebounceMillis int `yaml:"debounce_millis"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

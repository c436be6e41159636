package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9999
storage:
  database_path: ./data/builds.db
  index_dir: ./data/indices
embedding:
  provider: mock
  dimensions: 64
index:
  metric: euclidean
  rebuild_threshold: 0.5
search:
  max_results: 5
  boosts_enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 64 {
		t.Errorf("dimensions = %d, want 64", cfg.Embedding.Dimensions)
	}
	if cfg.Index.Metric != "euclidean" {
		t.Errorf("metric = %s, want euclidean", cfg.Index.Metric)
	}
	if cfg.Index.RebuildThreshold != 0.5 {
		t.Errorf("rebuild threshold = %f, want 0.5", cfg.Index.RebuildThreshold)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("max results = %d, want 5", cfg.Search.MaxResults)
	}
	if cfg.Search.BoostsEnabledOrDefault() {
		t.Error("boosts_enabled: false must stick")
	}
	// ./-prefixed paths resolve relative to the config dir.
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data/builds.db") {
		t.Errorf("database path = %s", cfg.Storage.DatabasePath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.Port == 0 {
		t.Error("default port not set")
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("default provider = %s, want mock", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions = %d, want 384", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.BatchChunkSize != 32 {
		t.Errorf("default batch chunk size = %d, want 32", cfg.Embedding.BatchChunkSize)
	}
	if cfg.Index.Metric != "cosine" {
		t.Errorf("default metric = %s, want cosine", cfg.Index.Metric)
	}
	if cfg.Index.RebuildThreshold != 0.3 {
		t.Errorf("default rebuild threshold = %f, want 0.3", cfg.Index.RebuildThreshold)
	}
	if cfg.Search.MaxResults != 20 {
		t.Errorf("default max results = %d, want 20", cfg.Search.MaxResults)
	}
	if cfg.Search.MinSimilarity != 0.3 {
		t.Errorf("default min similarity = %f, want 0.3", cfg.Search.MinSimilarity)
	}
	if cfg.Search.SimilarityWeight != 0.6 || cfg.Search.PopularityWeight != 0.2 || cfg.Search.QualityWeight != 0.2 {
		t.Error("default score weights must be 0.6/0.2/0.2")
	}
	if !cfg.Search.BoostsEnabledOrDefault() || !cfg.Search.DiversifyEnabledOrDefault() || !cfg.Search.MultiFeatureOrDefault() {
		t.Error("boosts, diversify, and multi-feature default to enabled")
	}
	if cfg.Search.MaxSimilarPerGroup != 2 {
		t.Errorf("default max similar per group = %d, want 2", cfg.Search.MaxSimilarPerGroup)
	}
	if cfg.Search.VariantMinSimilarity != 0.6 {
		t.Errorf("default variant min similarity = %f, want 0.6", cfg.Search.VariantMinSimilarity)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Server.Port = 1234

	if err := Save(path, &cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Server.Port != 1234 {
		t.Errorf("round-trip port = %d, want 1234", loaded.Server.Port)
	}
}

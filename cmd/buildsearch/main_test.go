package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/exilemind/buildsearch/internal/models"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`debug: false
storage:
  database_path: %s/builds.db
  index_dir: %s/indices
embedding:
  provider: mock
  dimensions: 32
`, dir, dir)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigExplicitPath(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimensions != 32 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("default port = %d, want 8090", cfg.Server.Port)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestInitializeComponents(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	components, err := initializeComponents(cfg, nil)
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer components.Close()

	// End to end through the wired components: ingest then search.
	records := []*models.BuildRecord{
		{Class: "Ranger", MainSkill: "Lightning Arrow", Goal: "mapping", Level: 90, Cost: 3},
		{Class: "Witch", MainSkill: "Arc", Goal: "bossing", Level: 92, Cost: 10},
	}
	if _, err := components.Ingestor.IngestRecords(context.Background(), records); err != nil {
		t.Fatalf("IngestRecords: %v", err)
	}
	zero := 0.0
	resp, err := components.Engine.Search(context.Background(), &models.SearchQuery{
		Query:         "Ranger build",
		MinSimilarity: &zero,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total == 0 {
		t.Error("expected results after ingest")
	}
}

func TestInitializeComponentsBadMetric(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.Index.Metric = "manhattan"
	if _, err := initializeComponents(cfg, nil); err == nil {
		t.Error("expected error for unknown metric")
	}
}

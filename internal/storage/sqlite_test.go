package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/exilemind/buildsearch/internal/models"
)

func newTestStore(t *testing.T) *SQLiteBuildStore {
	t.Helper()
	s, err := NewSQLiteBuildStore(filepath.Join(t.TempDir(), "builds.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func buildRecord(class, skill string) *models.BuildRecord {
	return &models.BuildRecord{
		Class:     class,
		MainSkill: skill,
		Goal:      "mapping",
		Cost:      3,
		Level:     92,
		Quality:   models.QualityMedium,
	}
}

func TestSQLiteBuildStore_UpsertGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := buildRecord("Ranger", "Lightning Arrow")

	if err := s.UpsertRecords(ctx, []*models.BuildRecord{r}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetRecord(ctx, r.Hash())
	if err != nil {
		t.Fatal(err)
	}
	if got.Class != "Ranger" || got.MainSkill != "Lightning Arrow" || got.Quality != models.QualityMedium {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestSQLiteBuildStore_UpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := buildRecord("Ranger", "Lightning Arrow")

	for i := 0; i < 3; i++ {
		if err := s.UpsertRecords(ctx, []*models.BuildRecord{r}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.CountRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1 (same hash upserts)", n)
	}
}

func TestSQLiteBuildStore_AllAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	records := []*models.BuildRecord{
		buildRecord("Ranger", "Lightning Arrow"),
		buildRecord("Witch", "Vortex"),
		buildRecord("Duelist", "Lacerate"),
	}
	if err := s.UpsertRecords(ctx, records); err != nil {
		t.Fatal(err)
	}

	all, err := s.AllRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}

	page, err := s.ListRecords(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Errorf("page = %d, want 2", len(page))
	}
}

func TestSQLiteBuildStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := buildRecord("Ranger", "Lightning Arrow")
	if err := s.UpsertRecords(ctx, []*models.BuildRecord{r}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRecord(ctx, r.Hash()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRecord(ctx, r.Hash()); err == nil {
		t.Error("deleted record must not be found")
	}
}

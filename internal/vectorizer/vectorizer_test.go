package vectorizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/exilemind/buildsearch/internal/embedding"
	"github.com/exilemind/buildsearch/internal/feature"
	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/pkg/utils"
)

func record(class, skill string, cost float64) *models.BuildRecord {
	return &models.BuildRecord{
		Class:       class,
		MainSkill:   skill,
		Goal:        "mapping",
		Cost:        cost,
		Level:       90,
		DPS:         800_000,
		EffectiveHP: 40_000,
	}
}

// failingEmbedder fails for texts containing a marker substring.
type failingEmbedder struct {
	*embedding.MockEmbedder
	failOn string
	calls  atomic.Int64
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.failOn != "" && contains(text, f.failOn) {
		return nil, errors.New("backend unavailable")
	}
	return f.MockEmbedder.Embed(ctx, text)
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		emb, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func newTestVectorizer(t *testing.T, opts ...Option) *Vectorizer {
	t.Helper()
	return NewVectorizer(embedding.NewMockEmbedder(64), feature.NewSynthesizer(), 64, opts...)
}

func TestVectorize_DimensionAndNorm(t *testing.T) {
	v := newTestVectorizer(t)
	for _, multi := range []bool{false, true} {
		vec, err := v.Vectorize(context.Background(), record("Ranger", "Lightning Arrow", 5), multi)
		if err != nil {
			t.Fatalf("multi=%v: %v", multi, err)
		}
		if len(vec) != 64 {
			t.Fatalf("multi=%v: dimension = %d, want 64", multi, len(vec))
		}
		if n := utils.L2Norm(vec); math.Abs(n-1.0) > 1e-5 {
			t.Errorf("multi=%v: norm = %f, want 1", multi, n)
		}
	}
}

func TestVectorize_MultiFeatureFallsBackWhenEmpty(t *testing.T) {
	v := newTestVectorizer(t)
	// A record with no class, skill, equipment, keystones, stats, or goal
	// synthesizes empty text for every weighted group.
	empty := &models.BuildRecord{}
	multi, err := v.Vectorize(context.Background(), empty, true)
	if err != nil {
		t.Fatal(err)
	}
	single, err := v.Vectorize(context.Background(), empty, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := range multi {
		if multi[i] != single[i] {
			t.Fatal("all-empty multi-feature must fall back to single-feature")
		}
	}
}

func TestVectorize_MultiFeatureDiffersFromSingle(t *testing.T) {
	v := newTestVectorizer(t)
	r := record("Ranger", "Lightning Arrow", 5)
	r.Keystones = []string{"Point Blank"}
	multi, _ := v.Vectorize(context.Background(), r, true)
	single, _ := v.Vectorize(context.Background(), r, false)
	same := true
	for i := range multi {
		if multi[i] != single[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("weighted multi-feature combination should differ from the single comprehensive vector")
	}
}

func TestVectorizeBatch_PreservesOrder(t *testing.T) {
	v := newTestVectorizer(t, WithChunkSize(2), WithParallelism(3))
	var records []*models.BuildRecord
	for i := 0; i < 10; i++ {
		records = append(records, record("Ranger", fmt.Sprintf("Skill %d", i), float64(i)))
	}
	outcomes, err := v.VectorizeBatch(context.Background(), records, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 10 {
		t.Fatalf("outcomes = %d, want 10", len(outcomes))
	}
	for i, rec := range records {
		want, _ := v.Vectorize(context.Background(), rec, false)
		got := outcomes[i].Vector
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("outcome %d out of order", i)
			}
		}
	}
}

func TestVectorizeBatch_FailureSubstitutesZeroVector(t *testing.T) {
	fe := &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(16), failOn: "Poison Concoction"}
	v := NewVectorizer(fe, feature.NewSynthesizer(), 16)

	records := []*models.BuildRecord{
		record("Ranger", "Lightning Arrow", 1),
		record("Pathfinder", "Poison Concoction", 2),
		record("Witch", "Vortex", 3),
	}
	outcomes, err := v.VectorizeBatch(context.Background(), records, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Failed() || outcomes[2].Failed() {
		t.Error("healthy records must succeed")
	}
	if !outcomes[1].Failed() {
		t.Fatal("failing record must carry its error")
	}
	for _, x := range outcomes[1].Vector {
		if x != 0 {
			t.Fatal("failed record must get a zero vector")
		}
	}
	if len(outcomes[1].Vector) != 16 {
		t.Errorf("zero vector width = %d, want 16", len(outcomes[1].Vector))
	}
}

func TestVectorizeBatch_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := newTestVectorizer(t, WithChunkSize(1), WithParallelism(1))
	var records []*models.BuildRecord
	for i := 0; i < 50; i++ {
		records = append(records, record("Ranger", fmt.Sprintf("S%d", i), 1))
	}
	_, err := v.VectorizeBatch(ctx, records, false)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestVectorizeText(t *testing.T) {
	v := newTestVectorizer(t)
	vec, err := v.VectorizeText(context.Background(), "ranger lightning arrow")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 64 {
		t.Errorf("dimension = %d, want 64", len(vec))
	}
	if n := utils.L2Norm(vec); math.Abs(n-1.0) > 1e-5 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestNewVectorizer_AdoptsBackendWidth(t *testing.T) {
	// Configured expectation 999 disagrees with the backend's 32; the backend wins.
	v := NewVectorizer(embedding.NewMockEmbedder(32), feature.NewSynthesizer(), 999)
	if v.Dimensions() != 32 {
		t.Errorf("dimensions = %d, want backend width 32", v.Dimensions())
	}
}

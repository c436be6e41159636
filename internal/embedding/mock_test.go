package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/exilemind/buildsearch/pkg/utils"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	a, err := e.Embed(context.Background(), "Deadeye Ranger build using Lightning Arrow")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(context.Background(), "Deadeye Ranger build using Lightning Arrow")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text must embed identically")
		}
	}
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	e := NewMockEmbedder(128)
	emb, err := e.Embed(context.Background(), "witch bossing")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 128 {
		t.Fatalf("dimension = %d, want 128", len(emb))
	}
	if n := utils.L2Norm(emb); math.Abs(n-1.0) > 1e-5 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestMockEmbedder_SharedWordsCorrelate(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	base, _ := e.Embed(ctx, "Ranger Lightning Arrow mapping")
	near, _ := e.Embed(ctx, "Ranger Lightning Arrow bossing")
	far, _ := e.Embed(ctx, "Witch Minion Army leveling")
	if utils.Dot(base, near) <= utils.Dot(base, far) {
		t.Error("texts sharing words must be more similar than disjoint texts")
	}
}

func TestMockEmbedder_BatchOrder(t *testing.T) {
	e := NewMockEmbedder(32)
	texts := []string{"one", "two", "three"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 {
		t.Fatalf("batch size = %d", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(context.Background(), text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch[%d] diverges from single embed", i)
			}
		}
	}
}

func TestMockEmbedder_DefaultDimensions(t *testing.T) {
	if NewMockEmbedder(0).Dimensions() != 384 {
		t.Error("non-positive dimensions must default to 384")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3}) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry must be evicted")
	}
	if v, ok := c.Get("b"); !ok || v[0] != 2 {
		t.Error("recent entries must survive")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a")               // refresh "a"
	c.Set("c", []float32{3}) // should evict "b"

	if _, ok := c.Get("a"); !ok {
		t.Error("refreshed entry must survive")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("stale entry must be evicted")
	}
}

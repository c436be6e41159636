// Package integration provides end-to-end tests over real storage and indices.
package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exilemind/buildsearch/internal/config"
	"github.com/exilemind/buildsearch/internal/embedding"
	"github.com/exilemind/buildsearch/internal/feature"
	"github.com/exilemind/buildsearch/internal/ingest"
	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/internal/search"
	"github.com/exilemind/buildsearch/internal/storage"
	"github.com/exilemind/buildsearch/internal/vector"
	"github.com/exilemind/buildsearch/internal/vectorizer"
)

type stack struct {
	store    storage.BuildStore
	blobs    storage.BlobStore
	index    *vector.Index
	engine   *search.Engine
	ingestor *ingest.Ingestor
	cfg      *config.Config
}

func newStack(t *testing.T, dir string) *stack {
	t.Helper()
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Search.MinSimilarity = 0
	cfg.Embedding.Dimensions = 32

	store, err := storage.NewSQLiteBuildStore(filepath.Join(dir, "builds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	blobs, err := storage.NewDiskBlobStore(filepath.Join(dir, "indices"))
	require.NoError(t, err)

	vec := vectorizer.NewVectorizer(embedding.NewMockEmbedder(32), feature.NewSynthesizer(), 32)
	index := vector.NewIndex(vector.Options{
		Clusters:         cfg.Index.Clusters,
		NProbe:           cfg.Index.NProbe,
		RebuildThreshold: cfg.Index.RebuildThreshold,
	}, blobs, nil)
	engine := search.NewEngine(index, vec, &cfg.Search, nil)
	ingestor := ingest.NewIngestor(store, vec, index, true, nil)
	return &stack{store: store, blobs: blobs, index: index, engine: engine, ingestor: ingestor, cfg: &cfg}
}

var classes = []struct {
	class, ascendancy, skill string
}{
	{"Ranger", "Deadeye", "Lightning Arrow"},
	{"Ranger", "Pathfinder", "Toxic Rain"},
	{"Witch", "Necromancer", "Summon Skeletons"},
	{"Witch", "Elementalist", "Arc"},
	{"Duelist", "Champion", "Boneshatter"},
	{"Templar", "Inquisitor", "Spark"},
}

func corpus(n int) []*models.BuildRecord {
	goals := []string{"mapping", "bossing", "delving"}
	records := make([]*models.BuildRecord, n)
	for i := range records {
		c := classes[i%len(classes)]
		records[i] = &models.BuildRecord{
			Class:          c.class,
			Ascendancy:     c.ascendancy,
			MainSkill:      c.skill,
			Goal:           goals[i%len(goals)],
			Cost:           float64(i) + 0.5,
			Level:          85 + i%15,
			DPS:            float64(100000 + i*1000),
			EffectiveHP:    float64(30000 + i*100),
			PopularityRank: i + 1,
			Quality:        models.QualityMedium,
		}
	}
	return records
}

func TestPipelineLargeCorpus(t *testing.T) {
	st := newStack(t, t.TempDir())
	ctx := context.Background()

	report, err := st.ingestor.IngestRecords(ctx, corpus(1200))
	require.NoError(t, err)
	assert.True(t, report.Rebuilt)
	assert.Equal(t, 1200, st.index.Size())

	// Above the clustered threshold the index should have picked IVF.
	stats := st.index.Stats()
	assert.Equal(t, vector.IndexTypeIVF, stats.Type)
	assert.Equal(t, 32, stats.Dimensions)

	resp, err := st.engine.Search(ctx, &models.SearchQuery{
		Query: "Deadeye Ranger build using Lightning Arrow",
		Class: "Ranger",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, "Ranger", r.Metadata.Class)
		assert.Equal(t, models.FilterStatusPassed, r.FilterStatus)
	}
}

func TestPipelineSaveLoadAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	st := newStack(t, dir)
	ctx := context.Background()

	_, err := st.ingestor.IngestRecords(ctx, corpus(60))
	require.NoError(t, err)
	_, err = st.index.Save("release-1")
	require.NoError(t, err)

	// A second stack over the same directories restores the snapshot and
	// answers queries identically.
	st2 := newStack(t, dir)
	require.NoError(t, st2.index.Load(""))
	assert.Equal(t, 60, st2.index.Size())

	query := &models.SearchQuery{Query: "Witch Arc build", MaxResults: 5}
	want, err := st.engine.Search(ctx, query)
	require.NoError(t, err)
	got, err := st2.engine.Search(ctx, query)
	require.NoError(t, err)
	require.Equal(t, len(want.Results), len(got.Results))
	for i := range want.Results {
		assert.Equal(t, want.Results[i].Hash, got.Results[i].Hash)
		assert.InDelta(t, want.Results[i].Score, got.Results[i].Score, 1e-6)
	}
}

func TestPipelineIncrementalIngest(t *testing.T) {
	st := newStack(t, t.TempDir())
	ctx := context.Background()

	_, err := st.ingestor.IngestRecords(ctx, corpus(100))
	require.NoError(t, err)

	// A small follow-up batch stays incremental.
	extra := corpus(110)[100:]
	report, err := st.ingestor.IngestRecords(ctx, extra)
	require.NoError(t, err)
	assert.False(t, report.Rebuilt)
	assert.Equal(t, 110, st.index.Size())

	count, err := st.store.CountRecords(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 110, count)
}

func TestPipelineVariants(t *testing.T) {
	st := newStack(t, t.TempDir())
	ctx := context.Background()
	st.cfg.Search.VariantMinSimilarity = 0.2

	records := corpus(60)
	_, err := st.ingestor.IngestRecords(ctx, records)
	require.NoError(t, err)

	ref := records[0] // Deadeye Ranger
	resp, err := st.engine.FindVariants(ctx, ref, 10)
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, ref.Hash(), r.Hash)
		assert.Equal(t, ref.Class, r.Metadata.Class)
	}
}

func TestPipelineOptimizeAndBackup(t *testing.T) {
	st := newStack(t, t.TempDir())
	ctx := context.Background()

	_, err := st.ingestor.IngestRecords(ctx, corpus(1200))
	require.NoError(t, err)

	report, err := st.index.Optimize()
	require.NoError(t, err)
	assert.Equal(t, vector.IndexTypeIVF, report.Type)
	assert.Equal(t, 1, report.NProbeAfter) // 1200/1000 rounds down to 1

	_, err = st.index.Save("")
	require.NoError(t, err)
	name, err := st.index.Backup()
	require.NoError(t, err)

	keys, err := st.blobs.List("backups/" + name)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestPipelineRecordLifecycle(t *testing.T) {
	st := newStack(t, t.TempDir())
	ctx := context.Background()

	records := corpus(30)
	_, err := st.ingestor.IngestRecords(ctx, records)
	require.NoError(t, err)

	hash := records[7].Hash()
	got, err := st.store.GetRecord(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, records[7].MainSkill, got.MainSkill)

	require.NoError(t, st.store.DeleteRecord(ctx, hash))
	_, err = st.store.GetRecord(ctx, hash)
	assert.Error(t, err)

	// The vector lingers until rebuild; a rebuild drops it.
	require.NoError(t, st.ingestor.Rebuild(ctx))
	assert.Equal(t, 29, st.index.Size())

	resp, err := st.engine.Search(ctx, &models.SearchQuery{Query: "build", MaxResults: 100})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, hash, r.Hash, fmt.Sprintf("deleted build %s still searchable", hash))
	}
}

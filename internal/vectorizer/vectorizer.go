// Package vectorizer converts build records and query text into normalized
// embedding vectors, single- or multi-feature weighted.
package vectorizer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/exilemind/buildsearch/internal/embedding"
	"github.com/exilemind/buildsearch/internal/feature"
	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/pkg/utils"
)

// Outcome is the per-record result of batch vectorization. A failed record
// carries a zero vector and the error that caused it; the batch itself continues.
type Outcome struct {
	Vector []float32
	Err    error
}

// Failed reports whether this record's embedding failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Vectorizer orchestrates the feature synthesizer and an embedding backend.
type Vectorizer struct {
	embedder    embedding.Embedder
	synth       *feature.Synthesizer
	dimensions  int
	normalize   bool
	chunkSize   int
	parallelism int
	logger      *zap.Logger
}

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithLogger sets a logger for warnings and per-record failure logging.
func WithLogger(l *zap.Logger) Option {
	return func(v *Vectorizer) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithoutNormalization disables L2 normalization of produced vectors.
func WithoutNormalization() Option {
	return func(v *Vectorizer) { v.normalize = false }
}

// WithChunkSize sets the batch chunk size (default 32).
func WithChunkSize(n int) Option {
	return func(v *Vectorizer) {
		if n > 0 {
			v.chunkSize = n
		}
	}
}

// WithParallelism bounds the worker pool for batch embedding (default 4).
func WithParallelism(n int) Option {
	return func(v *Vectorizer) {
		if n > 0 {
			v.parallelism = n
		}
	}
}

// NewVectorizer creates a vectorizer for the given backend. When the configured
// dimension disagrees with the backend's reported width, the backend's width is
// adopted and a one-time warning is logged.
func NewVectorizer(embedder embedding.Embedder, synth *feature.Synthesizer, configuredDim int, opts ...Option) *Vectorizer {
	v := &Vectorizer{
		embedder:    embedder,
		synth:       synth,
		dimensions:  embedder.Dimensions(),
		normalize:   true,
		chunkSize:   32,
		parallelism: 4,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if configuredDim > 0 && configuredDim != v.dimensions {
		v.logger.Warn("configured embedding dimension differs from backend; adopting backend width",
			zap.Int("configured", configuredDim),
			zap.Int("backend", v.dimensions))
	}
	return v
}

// Dimensions returns the vector width this vectorizer produces.
func (v *Vectorizer) Dimensions() int {
	return v.dimensions
}

// InvalidateFeatures drops memoized feature texts for one record hash.
func (v *Vectorizer) InvalidateFeatures(hash string) {
	v.synth.Invalidate(hash)
}

// ResetFeatureCache drops every memoized feature text.
func (v *Vectorizer) ResetFeatureCache() {
	v.synth.Reset()
}

// VectorizeText embeds ad hoc query text and normalizes the result.
func (v *Vectorizer) VectorizeText(ctx context.Context, text string) ([]float32, error) {
	emb, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(emb) != v.dimensions {
		return nil, fmt.Errorf("embed text: backend returned %d dimensions, expected %d", len(emb), v.dimensions)
	}
	out := make([]float32, v.dimensions)
	copy(out, emb)
	if v.normalize {
		utils.NormalizeL2(out)
	}
	return out, nil
}

// Vectorize produces one vector for a record. In multi-feature mode the five
// feature groups are embedded separately, scaled by their weights, summed, and
// re-normalized; when every group synthesizes empty text it falls back to
// single-feature mode.
func (v *Vectorizer) Vectorize(ctx context.Context, record *models.BuildRecord, multiFeature bool) ([]float32, error) {
	if !multiFeature {
		return v.vectorizeSingle(ctx, record)
	}

	type weighted struct {
		text   string
		weight float32
	}
	var groups []weighted
	for _, g := range feature.MultiFeatureGroups {
		text := v.synth.Synthesize(record, g)
		if text == "" {
			continue
		}
		groups = append(groups, weighted{text: text, weight: feature.GroupWeights[g]})
	}
	if len(groups) == 0 {
		return v.vectorizeSingle(ctx, record)
	}

	texts := make([]string, len(groups))
	for i, g := range groups {
		texts[i] = g.text
	}
	embeddings, err := v.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed feature groups for %s: %w", record.Hash(), err)
	}

	combined := make([]float32, v.dimensions)
	for i, emb := range embeddings {
		if len(emb) != v.dimensions {
			return nil, fmt.Errorf("feature group %d: backend returned %d dimensions, expected %d", i, len(emb), v.dimensions)
		}
		w := groups[i].weight
		for j, val := range emb {
			combined[j] += w * val
		}
	}
	if v.normalize {
		utils.NormalizeL2(combined)
	}
	return combined, nil
}

func (v *Vectorizer) vectorizeSingle(ctx context.Context, record *models.BuildRecord) ([]float32, error) {
	text := v.synth.Synthesize(record, feature.GroupComprehensive)
	emb, err := v.VectorizeText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize %s: %w", record.Hash(), err)
	}
	return emb, nil
}

// VectorizeBatch vectorizes records in fixed-size chunks with a bounded worker
// pool. Output order matches input order. A record whose embedding fails gets a
// zero vector and its error in the outcome; the batch continues. Cancellation
// is honored at chunk boundaries; in-flight embedding calls are not interrupted.
func (v *Vectorizer) VectorizeBatch(ctx context.Context, records []*models.BuildRecord, multiFeature bool) ([]Outcome, error) {
	outcomes := make([]Outcome, len(records))
	if len(records) == 0 {
		return outcomes, nil
	}

	type chunk struct {
		start, end int
	}
	var chunks []chunk
	for start := 0; start < len(records); start += v.chunkSize {
		end := start + v.chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, chunk{start, end})
	}

	workers := v.parallelism
	if workers > len(chunks) {
		workers = len(chunks)
	}

	work := make(chan chunk)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				for i := c.start; i < c.end; i++ {
					vec, err := v.Vectorize(ctx, records[i], multiFeature)
					if err != nil {
						v.logger.Warn("record embedding failed; substituting zero vector",
							zap.String("hash", records[i].Hash()),
							zap.Error(err))
						outcomes[i] = Outcome{Vector: make([]float32, v.dimensions), Err: err}
						continue
					}
					outcomes[i] = Outcome{Vector: vec}
				}
			}
		}()
	}

	var cancelled error
dispatch:
	for _, c := range chunks {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break dispatch
		case work <- c:
		}
	}
	close(work)
	wg.Wait()

	if cancelled != nil {
		return outcomes, cancelled
	}
	return outcomes, nil
}

// Vectors extracts the vector slice from outcomes, in order.
func Vectors(outcomes []Outcome) [][]float32 {
	vectors := make([][]float32, len(outcomes))
	for i, o := range outcomes {
		vectors[i] = o.Vector
	}
	return vectors
}

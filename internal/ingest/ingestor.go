// Package ingest coordinates record persistence, vectorization, and index
// population. It owns the rebuild path taken when an incremental add is
// refused.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/internal/storage"
	"github.com/exilemind/buildsearch/internal/vector"
	"github.com/exilemind/buildsearch/internal/vectorizer"
)

// Report summarizes one ingest call.
type Report struct {
	Received int  `json:"received"`
	Indexed  int  `json:"indexed"`
	Failed   int  `json:"failed"`
	Rebuilt  bool `json:"rebuilt"`
}

// Ingestor persists incoming build records and keeps the vector index in sync
// with the record store.
type Ingestor struct {
	store        storage.BuildStore
	vectorizer   *vectorizer.Vectorizer
	index        *vector.Index
	multiFeature bool
	logger       *zap.Logger
}

// NewIngestor wires an ingestor over the given store, vectorizer, and index.
func NewIngestor(store storage.BuildStore, vec *vectorizer.Vectorizer, index *vector.Index, multiFeature bool, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:        store,
		vectorizer:   vec,
		index:        index,
		multiFeature: multiFeature,
		logger:       logger,
	}
}

// IngestRecords persists records and adds their vectors to the index. When the
// index refuses the incremental add, or has never been built, the whole corpus
// is re-vectorized from the store and the index rebuilt.
func (in *Ingestor) IngestRecords(ctx context.Context, records []*models.BuildRecord) (*Report, error) {
	report := &Report{Received: len(records)}
	if len(records) == 0 {
		return report, nil
	}
	if err := in.store.UpsertRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("persist records: %w", err)
	}

	outcomes, err := in.vectorizer.VectorizeBatch(ctx, records, in.multiFeature)
	if err != nil {
		return nil, fmt.Errorf("vectorize records: %w", err)
	}
	vectors := make([][]float32, 0, len(records))
	entries := make([]*models.BuildMetadata, 0, len(records))
	for i, out := range outcomes {
		if out.Failed() {
			report.Failed++
			in.logger.Warn("record skipped after vectorization failure",
				zap.String("hash", records[i].Hash()), zap.Error(out.Err))
			continue
		}
		vectors = append(vectors, out.Vector)
		entries = append(entries, records[i].Metadata())
	}
	if len(vectors) == 0 {
		return report, fmt.Errorf("no record could be vectorized")
	}

	err = in.index.Add(vectors, entries)
	switch {
	case err == nil:
		report.Indexed = len(vectors)
		return report, nil
	case errors.Is(err, vector.ErrNeedsRebuild) || errors.Is(err, vector.ErrNotBuilt):
		if err := in.Rebuild(ctx); err != nil {
			return nil, err
		}
		report.Indexed = len(vectors)
		report.Rebuilt = true
		return report, nil
	default:
		return nil, fmt.Errorf("index records: %w", err)
	}
}

// DeleteRecord removes a record from the store and drops its memoized feature
// texts. Its vector stays indexed until the next rebuild.
func (in *Ingestor) DeleteRecord(ctx context.Context, hash string) error {
	if err := in.store.DeleteRecord(ctx, hash); err != nil {
		return err
	}
	in.vectorizer.InvalidateFeatures(hash)
	return nil
}

// Rebuild re-vectorizes every stored record and rebuilds the index from
// scratch, letting it pick the strategy for the current corpus size.
func (in *Ingestor) Rebuild(ctx context.Context) error {
	records, err := in.store.AllRecords(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("record store is empty, nothing to build")
	}

	// Start from a clean memo cache so texts for removed records are evicted.
	in.vectorizer.ResetFeatureCache()

	outcomes, err := in.vectorizer.VectorizeBatch(ctx, records, in.multiFeature)
	if err != nil {
		return fmt.Errorf("vectorize corpus: %w", err)
	}
	vectors := make([][]float32, 0, len(records))
	entries := make([]*models.BuildMetadata, 0, len(records))
	for i, out := range outcomes {
		if out.Failed() {
			in.logger.Warn("record excluded from rebuild",
				zap.String("hash", records[i].Hash()), zap.Error(out.Err))
			continue
		}
		vectors = append(vectors, out.Vector)
		entries = append(entries, records[i].Metadata())
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no record could be vectorized")
	}
	if err := in.index.Build(vectors, entries); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	in.logger.Info("index rebuilt from store", zap.Int("records", len(vectors)))
	return nil
}

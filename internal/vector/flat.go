package vector

import (
	"fmt"
	"io"
	"sort"
)

// FlatBackend performs an exact linear scan over all stored vectors. It is the
// strategy for small corpora where brute force is both fastest and exact.
type FlatBackend struct {
	metric  Metric
	dim     int
	vectors [][]float32
}

// NewFlatBackend creates an empty flat backend with the given dimension.
func NewFlatBackend(dim int, metric Metric) *FlatBackend {
	return &FlatBackend{metric: metric, dim: dim}
}

func (f *FlatBackend) Type() IndexType        { return IndexTypeFlat }
func (f *FlatBackend) RequiresTraining() bool { return false }
func (f *FlatBackend) Size() int              { return len(f.vectors) }
func (f *FlatBackend) Dimensions() int        { return f.dim }

// Train is a no-op for the exact backend.
func (f *FlatBackend) Train(vectors [][]float32) error { return nil }

func (f *FlatBackend) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), f.dim)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *FlatBackend) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}
	hits := make([]Hit, 0, len(f.vectors))
	for slot, v := range f.vectors {
		hits = append(hits, Hit{Slot: slot, Similarity: f.metric.Similarity(query, v)})
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *FlatBackend) WriteTo(w io.Writer) error {
	return writeMatrix(w, f.vectors, f.dim)
}

func (f *FlatBackend) ReadFrom(r io.Reader) error {
	vectors, width, err := readMatrix(r, "flat vectors")
	if err != nil {
		return err
	}
	f.vectors = vectors
	if len(vectors) > 0 {
		f.dim = width
	}
	return nil
}

// sortHits orders hits by descending similarity, breaking ties by slot so
// results are deterministic.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Slot < hits[j].Slot
	})
}

// Package vector provides the size-adaptive vector index: exact, clustered,
// and clustered+quantized backends behind one manager with persistence.
package vector

import "io"

// IndexType identifies the retrieval strategy behind an index.
type IndexType string

const (
	// IndexTypeFlat is an exact linear scan; no training phase. Used for small corpora.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeIVF partitions vectors into clusters and probes a subset per query.
	IndexTypeIVF IndexType = "ivf"
	// IndexTypeIVFPQ adds product quantization on top of clustering to bound memory.
	IndexTypeIVFPQ IndexType = "ivfpq"
)

// Corpus-size thresholds for strategy selection at build time.
const (
	clusteredMinSize = 1_000
	quantizedMinSize = 50_000
)

// ChooseIndexType selects the retrieval strategy for a corpus of n vectors.
func ChooseIndexType(n int) IndexType {
	switch {
	case n < clusteredMinSize:
		return IndexTypeFlat
	case n < quantizedMinSize:
		return IndexTypeIVF
	default:
		return IndexTypeIVFPQ
	}
}

// Hit is one nearest-neighbor result: a dense slot position and its similarity.
type Hit struct {
	Slot       int
	Similarity float64
}

// Backend is the storage/search strategy behind an Index. Slot positions are
// dense, 0-based, and assigned in insertion order. Backends are not safe for
// concurrent mutation; the Index serializes access.
type Backend interface {
	Type() IndexType
	// RequiresTraining reports whether Train must run before Add.
	RequiresTraining() bool
	Train(vectors [][]float32) error
	Add(vectors [][]float32) error
	Search(query []float32, k int) ([]Hit, error)
	Size() int
	Dimensions() int
	WriteTo(w io.Writer) error
	ReadFrom(r io.Reader) error
}

// probeTunable is implemented by clustered backends whose nprobe can be retuned
// after build.
type probeTunable interface {
	NProbe() int
	SetNProbe(n int)
}

package vector

import (
	"fmt"
	"io"
)

const kmeansSeed = 42

// IVFBackend partitions the corpus into nlist clusters and scans only the
// nprobe clusters nearest the query. Approximate: recall depends on nprobe.
type IVFBackend struct {
	metric    Metric
	dim       int
	nprobe    int
	centroids [][]float32
	// lists[c] holds the slots assigned to centroid c; vectors is indexed by slot.
	lists   [][]uint32
	vectors [][]float32
}

// NewIVFBackend creates an untrained clustered backend. nlist is the number of
// clusters to learn during Train; nprobe is how many to scan per query.
func NewIVFBackend(dim, nlist, nprobe int, metric Metric) *IVFBackend {
	if nprobe < 1 {
		nprobe = 1
	}
	if nprobe > nlist {
		nprobe = nlist
	}
	return &IVFBackend{
		metric: metric,
		dim:    dim,
		nprobe: nprobe,
		lists:  make([][]uint32, nlist),
	}
}

func (b *IVFBackend) Type() IndexType        { return IndexTypeIVF }
func (b *IVFBackend) RequiresTraining() bool { return true }
func (b *IVFBackend) Size() int              { return len(b.vectors) }
func (b *IVFBackend) Dimensions() int        { return b.dim }
func (b *IVFBackend) NProbe() int            { return b.nprobe }

func (b *IVFBackend) SetNProbe(n int) {
	if n < 1 {
		n = 1
	}
	if n > len(b.lists) {
		n = len(b.lists)
	}
	b.nprobe = n
}

// Train learns cluster centroids from a training sample. The sample must hold
// at least as many vectors as there are clusters.
func (b *IVFBackend) Train(vectors [][]float32) error {
	nlist := len(b.lists)
	if len(vectors) < nlist {
		return fmt.Errorf("training requires at least %d vectors, got %d", nlist, len(vectors))
	}
	for _, v := range vectors {
		if len(v) != b.dim {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), b.dim)
		}
	}
	b.centroids = kMeans(vectors, nlist, kmeansSeed)
	return nil
}

func (b *IVFBackend) Add(vectors [][]float32) error {
	if b.centroids == nil {
		return fmt.Errorf("ivf backend is untrained")
	}
	for _, v := range vectors {
		if len(v) != b.dim {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), b.dim)
		}
		slot := uint32(len(b.vectors))
		c := nearestCentroid(v, b.centroids)
		b.lists[c] = append(b.lists[c], slot)
		b.vectors = append(b.vectors, v)
	}
	return nil
}

func (b *IVFBackend) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != b.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), b.dim)
	}
	if b.centroids == nil {
		return nil, fmt.Errorf("ivf backend is untrained")
	}
	probes := b.nearestCentroids(query, b.nprobe)
	hits := make([]Hit, 0, k*2)
	for _, c := range probes {
		for _, slot := range b.lists[c] {
			hits = append(hits, Hit{
				Slot:       int(slot),
				Similarity: b.metric.Similarity(query, b.vectors[slot]),
			})
		}
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// nearestCentroids returns the indices of the n centroids closest to the query,
// nearest first.
func (b *IVFBackend) nearestCentroids(query []float32, n int) []int {
	type cdist struct {
		idx  int
		dist float64
	}
	dists := make([]cdist, len(b.centroids))
	for i, c := range b.centroids {
		dists[i] = cdist{idx: i, dist: squaredDistance(query, c)}
	}
	// Partial selection sort; nlist is small so this beats a full sort setup.
	if n > len(dists) {
		n = len(dists)
	}
	out := make([]int, 0, n)
	for picked := 0; picked < n; picked++ {
		best := picked
		for j := picked + 1; j < len(dists); j++ {
			if dists[j].dist < dists[best].dist {
				best = j
			}
		}
		dists[picked], dists[best] = dists[best], dists[picked]
		out = append(out, dists[picked].idx)
	}
	return out
}

func (b *IVFBackend) WriteTo(w io.Writer) error {
	if err := writeUint32(w, uint32(b.nprobe)); err != nil {
		return err
	}
	if err := writeMatrix(w, b.centroids, b.dim); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(b.lists))); err != nil {
		return err
	}
	for _, list := range b.lists {
		if err := writeUint32s(w, list); err != nil {
			return err
		}
	}
	return writeMatrix(w, b.vectors, b.dim)
}

func (b *IVFBackend) ReadFrom(r io.Reader) error {
	nprobe, err := readLen(r, "nprobe")
	if err != nil {
		return err
	}
	centroids, width, err := readMatrix(r, "centroids")
	if err != nil {
		return err
	}
	nlist, err := readLen(r, "list count")
	if err != nil {
		return err
	}
	lists := make([][]uint32, nlist)
	for i := range lists {
		if lists[i], err = readUint32s(r, "inverted list"); err != nil {
			return err
		}
	}
	vectors, _, err := readMatrix(r, "ivf vectors")
	if err != nil {
		return err
	}
	b.nprobe = nprobe
	b.centroids = centroids
	b.lists = lists
	b.vectors = vectors
	if width > 0 {
		b.dim = width
	}
	return nil
}

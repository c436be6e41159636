package vector

import (
	"fmt"
	"io"
	"math"
	"math/rand"
)

const (
	pqCodebookSize  = 256 // one byte per subquantizer code
	rotationSeed    = 7
	pqTrainSeedBase = 1000
)

// pqSubquantizers picks how many subvectors to split a vector into. Prefers 8
// when the dimension allows it, otherwise the largest divisor up to 16.
func pqSubquantizers(dim int) int {
	if dim%8 == 0 {
		return 8
	}
	for m := 16; m > 1; m-- {
		if dim%m == 0 {
			return m
		}
	}
	return 1
}

// IVFPQBackend combines inverted-list clustering with product quantization.
// Vectors are stored as compact codes; search reconstructs approximate
// similarities through per-query lookup tables. An optional orthonormal
// rotation decorrelates dimensions before quantization.
type IVFPQBackend struct {
	metric Metric
	dim    int
	nprobe int
	m      int // subquantizers
	subDim int

	rotation  [][]float32 // nil when rotation is disabled
	centroids [][]float32
	// codebooks[s][c] is the c-th codeword of subquantizer s.
	codebooks [][][]float32
	lists     [][]uint32
	// codes[slot] is the m-byte PQ code of the residual for that slot. The
	// coarse assignment of a slot is recoverable from lists.
	codes [][]byte
}

// NewIVFPQBackend creates an untrained quantized backend.
func NewIVFPQBackend(dim, nlist, nprobe int, metric Metric, rotate bool) *IVFPQBackend {
	if nprobe < 1 {
		nprobe = 1
	}
	if nprobe > nlist {
		nprobe = nlist
	}
	b := &IVFPQBackend{
		metric: metric,
		dim:    dim,
		nprobe: nprobe,
		m:      pqSubquantizers(dim),
		lists:  make([][]uint32, nlist),
	}
	b.subDim = dim / b.m
	if rotate {
		b.rotation = randomRotation(dim, rotationSeed)
	}
	return b
}

func (b *IVFPQBackend) Type() IndexType        { return IndexTypeIVFPQ }
func (b *IVFPQBackend) RequiresTraining() bool { return true }
func (b *IVFPQBackend) Size() int              { return len(b.codes) }
func (b *IVFPQBackend) Dimensions() int        { return b.dim }
func (b *IVFPQBackend) NProbe() int            { return b.nprobe }

func (b *IVFPQBackend) SetNProbe(n int) {
	if n < 1 {
		n = 1
	}
	if n > len(b.lists) {
		n = len(b.lists)
	}
	b.nprobe = n
}

// Train learns coarse centroids and one codebook per subquantizer from the
// training sample.
func (b *IVFPQBackend) Train(vectors [][]float32) error {
	nlist := len(b.lists)
	need := nlist
	if pqCodebookSize > need {
		need = pqCodebookSize
	}
	if len(vectors) < need {
		return fmt.Errorf("training requires at least %d vectors, got %d", need, len(vectors))
	}
	for _, v := range vectors {
		if len(v) != b.dim {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), b.dim)
		}
	}

	rotated := make([][]float32, len(vectors))
	for i, v := range vectors {
		rotated[i] = b.rotate(v)
	}
	b.centroids = kMeans(rotated, nlist, kmeansSeed)

	// Codebooks are learned on residuals, one k-means per subspace.
	residuals := make([][]float32, len(rotated))
	for i, v := range rotated {
		residuals[i] = subtract(v, b.centroids[nearestCentroid(v, b.centroids)])
	}
	b.codebooks = make([][][]float32, b.m)
	sub := make([][]float32, len(residuals))
	for s := 0; s < b.m; s++ {
		lo := s * b.subDim
		for i, res := range residuals {
			sub[i] = res[lo : lo+b.subDim]
		}
		b.codebooks[s] = kMeans(sub, pqCodebookSize, int64(pqTrainSeedBase+s))
	}
	return nil
}

func (b *IVFPQBackend) Add(vectors [][]float32) error {
	if b.codebooks == nil {
		return fmt.Errorf("ivfpq backend is untrained")
	}
	for _, v := range vectors {
		if len(v) != b.dim {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), b.dim)
		}
		rv := b.rotate(v)
		c := nearestCentroid(rv, b.centroids)
		res := subtract(rv, b.centroids[c])

		code := make([]byte, b.m)
		for s := 0; s < b.m; s++ {
			lo := s * b.subDim
			code[s] = byte(nearestCentroid(res[lo:lo+b.subDim], b.codebooks[s]))
		}
		slot := uint32(len(b.codes))
		b.lists[c] = append(b.lists[c], slot)
		b.codes = append(b.codes, code)
	}
	return nil
}

func (b *IVFPQBackend) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != b.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), b.dim)
	}
	if b.codebooks == nil {
		return nil, fmt.Errorf("ivfpq backend is untrained")
	}
	rq := b.rotate(query)
	probes := b.nearestCentroids(rq, b.nprobe)
	hits := make([]Hit, 0, k*2)
	for _, c := range probes {
		tables, base := b.adcTables(rq, c)
		for _, slot := range b.lists[c] {
			code := b.codes[slot]
			acc := base
			for s := 0; s < b.m; s++ {
				acc += tables[s][code[s]]
			}
			hits = append(hits, Hit{Slot: int(slot), Similarity: b.finishScore(acc)})
		}
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// adcTables precomputes per-subquantizer score contributions for every
// codeword against the query, relative to coarse centroid c. For the inner
// product metric the tables hold dot products and base is q·centroid; for
// euclidean they hold squared residual distances and base is zero.
func (b *IVFPQBackend) adcTables(query []float32, c int) ([][]float64, float64) {
	tables := make([][]float64, b.m)
	var base float64
	if b.metric == MetricEuclidean {
		qres := subtract(query, b.centroids[c])
		for s := 0; s < b.m; s++ {
			lo := s * b.subDim
			qs := qres[lo : lo+b.subDim]
			tables[s] = make([]float64, len(b.codebooks[s]))
			for ci, word := range b.codebooks[s] {
				tables[s][ci] = squaredDistance(qs, word)
			}
		}
		return tables, 0
	}

	base = dot64(query, b.centroids[c])
	for s := 0; s < b.m; s++ {
		lo := s * b.subDim
		qs := query[lo : lo+b.subDim]
		tables[s] = make([]float64, len(b.codebooks[s]))
		for ci, word := range b.codebooks[s] {
			tables[s][ci] = dot64(qs, word)
		}
	}
	return tables, base
}

// finishScore maps an accumulated ADC value to a similarity under the metric.
func (b *IVFPQBackend) finishScore(acc float64) float64 {
	if b.metric == MetricEuclidean {
		return 1.0 / (1.0 + math.Sqrt(acc))
	}
	return acc
}

func (b *IVFPQBackend) nearestCentroids(query []float32, n int) []int {
	ivf := IVFBackend{centroids: b.centroids}
	return ivf.nearestCentroids(query, n)
}

// rotate applies the orthonormal rotation when enabled. Rotation preserves
// both inner products and distances, so similarity scores are unaffected.
func (b *IVFPQBackend) rotate(v []float32) []float32 {
	if b.rotation == nil {
		return v
	}
	out := make([]float32, len(v))
	for i, row := range b.rotation {
		out[i] = float32(dot64(row, v))
	}
	return out
}

func (b *IVFPQBackend) WriteTo(w io.Writer) error {
	if err := writeUint32(w, uint32(b.nprobe)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(b.m)); err != nil {
		return err
	}
	rotated := uint32(0)
	if b.rotation != nil {
		rotated = 1
	}
	if err := writeUint32(w, rotated); err != nil {
		return err
	}
	if b.rotation != nil {
		if err := writeMatrix(w, b.rotation, b.dim); err != nil {
			return err
		}
	}
	if err := writeMatrix(w, b.centroids, b.dim); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(b.codebooks))); err != nil {
		return err
	}
	for _, book := range b.codebooks {
		if err := writeMatrix(w, book, b.subDim); err != nil {
			return err
		}
	}
	if err := writeUint32(w, uint32(len(b.lists))); err != nil {
		return err
	}
	for _, list := range b.lists {
		if err := writeUint32s(w, list); err != nil {
			return err
		}
	}
	if err := writeUint32(w, uint32(len(b.codes))); err != nil {
		return err
	}
	for _, code := range b.codes {
		if err := writeBytes(w, code); err != nil {
			return err
		}
	}
	return nil
}

func (b *IVFPQBackend) ReadFrom(r io.Reader) error {
	nprobe, err := readLen(r, "nprobe")
	if err != nil {
		return err
	}
	m, err := readLen(r, "subquantizer count")
	if err != nil {
		return err
	}
	rotated, err := readUint32(r)
	if err != nil {
		return err
	}
	var rotation [][]float32
	if rotated == 1 {
		if rotation, _, err = readMatrix(r, "rotation"); err != nil {
			return err
		}
	}
	centroids, width, err := readMatrix(r, "centroids")
	if err != nil {
		return err
	}
	bookCount, err := readLen(r, "codebook count")
	if err != nil {
		return err
	}
	codebooks := make([][][]float32, bookCount)
	subDim := 0
	for i := range codebooks {
		if codebooks[i], subDim, err = readMatrix(r, "codebook"); err != nil {
			return err
		}
	}
	listCount, err := readLen(r, "list count")
	if err != nil {
		return err
	}
	lists := make([][]uint32, listCount)
	for i := range lists {
		if lists[i], err = readUint32s(r, "inverted list"); err != nil {
			return err
		}
	}
	codeCount, err := readLen(r, "code count")
	if err != nil {
		return err
	}
	codes := make([][]byte, codeCount)
	for i := range codes {
		if codes[i], err = readBytes(r, "pq code"); err != nil {
			return err
		}
	}
	b.nprobe = nprobe
	b.m = m
	b.rotation = rotation
	b.centroids = centroids
	b.codebooks = codebooks
	b.lists = lists
	b.codes = codes
	if width > 0 {
		b.dim = width
	}
	if subDim > 0 {
		b.subDim = subDim
	}
	return nil
}

func subtract(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func dot64(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// randomRotation builds a deterministic orthonormal matrix by Gram-Schmidt
// over Gaussian rows.
func randomRotation(dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float32, dim)
	for i := range rows {
		row := make([]float64, dim)
		for {
			for j := range row {
				row[j] = rng.NormFloat64()
			}
			// Orthogonalize against previous rows.
			for k := 0; k < i; k++ {
				var proj float64
				for j := range row {
					proj += row[j] * float64(rows[k][j])
				}
				for j := range row {
					row[j] -= proj * float64(rows[k][j])
				}
			}
			var norm float64
			for _, x := range row {
				norm += x * x
			}
			norm = math.Sqrt(norm)
			if norm > 1e-6 {
				out := make([]float32, dim)
				for j, x := range row {
					out[j] = float32(x / norm)
				}
				rows[i] = out
				break
			}
		}
	}
	return rows
}

package vector

import (
	"math"
	"math/rand"
)

const kmeansIterations = 15

// kMeans clusters vectors into k centroids with Lloyd's algorithm and
// k-means++ style seeding from a deterministic source. Assumes len(vectors) >= k.
func kMeans(vectors [][]float32, k int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	centroids := seedCentroids(vectors, k, rng)

	assignments := make([]int, len(vectors))
	counts := make([]int, k)
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			if assignments[i] != best || iter == 0 {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		for c := range centroids {
			for j := range centroids[c] {
				centroids[c][j] = 0
			}
			counts[c] = 0
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for j, x := range v {
				centroids[c][j] += x
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Re-seed empty clusters from a random vector.
				copy(centroids[c], vectors[rng.Intn(len(vectors))])
				continue
			}
			inv := float32(1.0 / float64(counts[c]))
			for j := range centroids[c] {
				centroids[c][j] *= inv
			}
		}
	}
	return centroids
}

// seedCentroids picks k starting centroids, weighting later picks toward
// vectors far from existing picks (k-means++).
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	dim := len(vectors[0])
	centroids := make([][]float32, k)
	first := rng.Intn(len(vectors))
	centroids[0] = append(make([]float32, 0, dim), vectors[first]...)

	dists := make([]float64, len(vectors))
	for c := 1; c < k; c++ {
		var total float64
		for i, v := range vectors {
			d := math.Inf(1)
			for _, cent := range centroids[:c] {
				if sq := squaredDistance(v, cent); sq < d {
					d = sq
				}
			}
			dists[i] = d
			total += d
		}
		pick := 0
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, d := range dists {
				acc += d
				if acc >= target {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(len(vectors))
		}
		centroids[c] = append(make([]float32, 0, dim), vectors[pick]...)
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best, bestDist := 0, math.Inf(1)
	for c, cent := range centroids {
		if d := squaredDistance(v, cent); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func squaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

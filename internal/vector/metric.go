package vector

import (
	"fmt"

	"github.com/exilemind/buildsearch/pkg/utils"
)

// Metric is the similarity metric an index uses. Selected once per index
// instance and fixed for its lifetime.
type Metric string

const (
	// MetricCosine scores by inner product over pre-normalized vectors.
	MetricCosine Metric = "cosine"
	// MetricEuclidean scores by 1/(1+distance).
	MetricEuclidean Metric = "euclidean"
)

// ParseMetric validates a metric name. An unknown name is a configuration
// error and fails fast.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricEuclidean:
		return MetricEuclidean, nil
	default:
		return "", fmt.Errorf("unknown metric: %q (supported: cosine, euclidean)", s)
	}
}

// Similarity returns the similarity score between two vectors under the metric.
// Higher is always more similar.
func (m Metric) Similarity(a, b []float32) float64 {
	if m == MetricEuclidean {
		return 1.0 / (1.0 + utils.L2Distance(a, b))
	}
	return utils.Dot(a, b)
}

package database

import (
	"math"

	"github.com/kozaktomas/face-index/internal/facematch"
)

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// SquaredEuclideanDistance computes the squared L2 distance between two vectors.
// Mismatched lengths yield +Inf.
func SquaredEuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Distance dispatches on metric. The euclidean metric is reported squared,
// the same scale hosted indexes return and the thresholds are calibrated on.
func Distance(metric facematch.Metric, a, b []float32) float64 {
	if metric == facematch.MetricCosine {
		return CosineDistance(a, b)
	}
	return SquaredEuclideanDistance(a, b)
}

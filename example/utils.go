package example

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/patrikhermansson/hanndb/core"
)

// FormatResults returns a formatted string of neighbor results.
// maxResults specifies how many items to include.
func FormatResults[K cmp.Ordered](results []core.Neighbor[K], maxResults int) string {
	var sb strings.Builder
	for i := 0; i < min(maxResults, len(results)); i++ {
		n := results[i]
		fmt.Fprintf(&sb, "id=%v (dist=%.3f) ", n.ID, n.Distance)
	}
	return sb.String()
}

// FormatGroundTruth returns a formatted string of ground-truth neighbor results.
// maxResults specifies how many items to include.
func FormatGroundTruth(neighbors []int, distances []float64, maxResults int) string {
	var sb strings.Builder
	for j := 0; j < min(maxResults, len(neighbors)); j++ {
		if j < len(distances) {
			fmt.Fprintf(&sb, "id=%d (dist=%.3f) ", neighbors[j], distances[j])
		} else {
			fmt.Fprintf(&sb, "id=%d ", neighbors[j])
		}
	}
	return sb.String()
}

// RecallAtK computes Recall@k as the fraction of the first k ground-truth items
// that appear in the top k predictions.
func RecallAtK[K comparable](predicted []core.Neighbor[K], groundTruth []K, k int) float64 {
	if k <= 0 || len(groundTruth) == 0 {
		return 0.0
	}
	if len(groundTruth) > k {
		groundTruth = groundTruth[:k]
	}
	// Build a set of predicted IDs from the top k predictions.
	predSet := make(map[K]struct{}, k)
	for i := 0; i < min(k, len(predicted)); i++ {
		predSet[predicted[i].ID] = struct{}{}
	}

	// Count ground-truth items that appear in the predictions.
	correct := 0
	for _, id := range groundTruth {
		if _, ok := predSet[id]; ok {
			correct++
		}
	}
	return float64(correct) / float64(len(groundTruth))
}

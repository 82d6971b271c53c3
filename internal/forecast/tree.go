package forecast

import (
	"math/rand"
	"sort"
)

// node is a CART regression tree node. Leaves have nil children.
type node struct {
	feature     int
	threshold   float64
	left, right *node
	value       float64
}

func (n *node) predict(x []float64) float64 {
	for n.left != nil {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

type treeConfig struct {
	maxDepth int
	minLeaf  int
	mtry     int        // features tried per split; all when >= width
	rng      *rand.Rand // required when mtry < width
}

// growTree fits a regression tree on rows idx minimising squared error.
func growTree(X [][]float64, y []float64, idx []int, depth int, cfg treeConfig) *node {
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	leaf := &node{value: sum / float64(len(idx))}
	if depth >= cfg.maxDepth || len(idx) < 2*cfg.minLeaf {
		return leaf
	}

	width := len(X[idx[0]])
	features := make([]int, width)
	for j := range features {
		features[j] = j
	}
	if cfg.mtry > 0 && cfg.mtry < width {
		cfg.rng.Shuffle(width, func(a, b int) { features[a], features[b] = features[b], features[a] })
		features = features[:cfg.mtry]
	}

	n := float64(len(idx))
	parentScore := sum * sum / n
	bestGain, bestFeature, bestThreshold := 1e-12, -1, 0.0
	sorted := make([]int, len(idx))
	for _, f := range features {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		sumLeft := 0.0
		for i := 1; i < len(sorted); i++ {
			sumLeft += y[sorted[i-1]]
			if i < cfg.minLeaf || len(sorted)-i < cfg.minLeaf {
				continue
			}
			lo, hi := X[sorted[i-1]][f], X[sorted[i]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(i), n-float64(i)
			sumRight := sum - sumLeft
			gain := sumLeft*sumLeft/nl + sumRight*sumRight/nr - parentScore
			if gain > bestGain {
				bestGain, bestFeature, bestThreshold = gain, f, (lo+hi)/2
			}
		}
	}
	if bestFeature < 0 {
		return leaf
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      growTree(X, y, left, depth+1, cfg),
		right:     growTree(X, y, right, depth+1, cfg),
	}
}

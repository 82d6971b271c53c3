package forecast

import (
	"errors"
	"math"
	"math/rand"

	"StockCast/internal/model"
)

// RandomForest averages CART trees grown on bootstrap samples with random feature subsets.
type RandomForest struct {
	Trees           int
	MaxDepth        int
	MinLeaf         int
	FeatureFraction float64
	Seed            int64

	width int
	trees []*node
}

func (m *RandomForest) Name() string { return "random_forest" }

func (m *RandomForest) MinSamples(int) int {
	if 4*m.MinLeaf > 20 {
		return 4 * m.MinLeaf
	}
	return 20
}

func (m *RandomForest) Fit(X [][]float64, y []float64) (model.Diagnostics, error) {
	width, err := checkFit(X, y)
	if err != nil {
		return model.Diagnostics{}, err
	}
	m.width = width
	mtry := int(math.Round(m.FeatureFraction * float64(width)))
	if mtry < 1 {
		mtry = 1
	}

	rng := rand.New(rand.NewSource(m.Seed))
	m.trees = make([]*node, 0, m.Trees)
	sample := make([]int, len(X))
	for t := 0; t < m.Trees; t++ {
		for i := range sample {
			sample[i] = rng.Intn(len(X))
		}
		cfg := treeConfig{maxDepth: m.MaxDepth, minLeaf: m.MinLeaf, mtry: mtry, rng: rng}
		m.trees = append(m.trees, growTree(X, y, sample, 0, cfg))
	}

	pred, err := m.Predict(X)
	if err != nil {
		return model.Diagnostics{}, err
	}
	return model.Diagnostics{Loss: []float64{mse(pred, y)}, Converged: true, Iterations: len(m.trees)}, nil
}

func (m *RandomForest) Predict(X [][]float64) ([]float64, error) {
	if len(m.trees) == 0 {
		return nil, errors.New("random_forest: model is not fitted")
	}
	if err := checkWidth(X, m.width); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		s := 0.0
		for _, t := range m.trees {
			s += t.predict(x)
		}
		out[i] = s / float64(len(m.trees))
	}
	return out, nil
}

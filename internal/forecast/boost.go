package forecast

import (
	"errors"

	"StockCast/internal/model"
)

// GradientBoosting fits shallow regression trees stage-wise to the residuals of the
// running prediction, shrinking each by LearningRate. Training stops early once the
// loss has not improved for Patience rounds.
type GradientBoosting struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
	Patience     int

	width  int
	init   float64
	trees  []*node
	fitted bool
}

func (m *GradientBoosting) Name() string { return "gradient_boosting" }

func (m *GradientBoosting) MinSamples(int) int {
	if 4*m.MinLeaf > 20 {
		return 4 * m.MinLeaf
	}
	return 20
}

func (m *GradientBoosting) Fit(X [][]float64, y []float64) (model.Diagnostics, error) {
	width, err := checkFit(X, y)
	if err != nil {
		return model.Diagnostics{}, err
	}
	m.width = width
	m.trees = nil
	m.fitted = true

	m.init = 0
	for _, v := range y {
		m.init += v
	}
	m.init /= float64(len(y))

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.init
	}
	residual := make([]float64, len(y))
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	cfg := treeConfig{maxDepth: m.MaxDepth, minLeaf: m.MinLeaf}

	diag := model.Diagnostics{Converged: true}
	best := mse(pred, y)
	stall := 0
	for round := 0; round < m.Rounds; round++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		tree := growTree(X, residual, idx, 0, cfg)
		m.trees = append(m.trees, tree)
		for i, x := range X {
			pred[i] += m.LearningRate * tree.predict(x)
		}

		loss := mse(pred, y)
		diag.Loss = append(diag.Loss, loss)
		diag.Iterations = round + 1
		if best-loss > 1e-9*best {
			best = loss
			stall = 0
			continue
		}
		stall++
		if m.Patience > 0 && stall >= m.Patience {
			break
		}
	}
	return diag, nil
}

func (m *GradientBoosting) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, errors.New("gradient_boosting: model is not fitted")
	}
	if err := checkWidth(X, m.width); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		v := m.init
		for _, t := range m.trees {
			v += m.LearningRate * t.predict(x)
		}
		out[i] = v
	}
	return out, nil
}

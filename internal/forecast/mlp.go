package forecast

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"StockCast/internal/model"
)

// MLP is a one-hidden-layer tanh network trained full-batch with Adam on standardized
// features and targets.
//
// Training converges when the loss drops to Tolerance or Patience consecutive epochs fail to
// beat the best loss so far by a relative Tolerance. Running out of MaxEpochs first is a
// model.ErrConvergenceFailure.
type MLP struct {
	Hidden       int
	LearningRate float64
	MaxEpochs    int
	Tolerance    float64
	Patience     int
	Seed         int64

	width  int
	xs     *standardizer
	yMean  float64
	yStd   float64
	params []float64 // w1 (Hidden x width), b1, w2, b2
}

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

func (m *MLP) Name() string { return "mlp" }

func (m *MLP) MinSamples(features int) int {
	if 2*features+10 > 30 {
		return 2*features + 10
	}
	return 30
}

// parameter offsets
func (m *MLP) offB1() int { return m.Hidden * m.width }
func (m *MLP) offW2() int { return m.offB1() + m.Hidden }
func (m *MLP) offB2() int { return m.offW2() + m.Hidden }

func (m *MLP) Fit(X [][]float64, y []float64) (model.Diagnostics, error) {
	width, err := checkFit(X, y)
	if err != nil {
		return model.Diagnostics{}, err
	}
	if m.Hidden <= 0 {
		return model.Diagnostics{}, errors.New("mlp: hidden layer must have at least one unit")
	}
	m.width = width
	m.xs = fitStandardizer(X)
	m.yMean, m.yStd = scale1(y)

	Z := m.xs.transform(X)
	target := make([]float64, len(y))
	for i, v := range y {
		target[i] = (v - m.yMean) / m.yStd
	}

	rng := rand.New(rand.NewSource(m.Seed))
	m.params = make([]float64, m.offB2()+1)
	limit1 := math.Sqrt(6 / float64(width+m.Hidden))
	for i := 0; i < m.offB1(); i++ {
		m.params[i] = (rng.Float64()*2 - 1) * limit1
	}
	limit2 := math.Sqrt(6 / float64(m.Hidden+1))
	for j := 0; j < m.Hidden; j++ {
		m.params[m.offW2()+j] = (rng.Float64()*2 - 1) * limit2
	}

	grad := make([]float64, len(m.params))
	mom := make([]float64, len(m.params))
	vel := make([]float64, len(m.params))
	hidden := make([]float64, m.Hidden)

	diag := model.Diagnostics{}
	best := math.Inf(1)
	stall := 0
	for epoch := 1; epoch <= m.MaxEpochs; epoch++ {
		for i := range grad {
			grad[i] = 0
		}
		loss := 0.0
		scale := 2 / float64(len(Z))
		for i, z := range Z {
			out := m.forward(z, hidden)
			d := out - target[i]
			loss += d * d
			m.backward(z, hidden, d*scale, grad)
		}
		loss /= float64(len(Z))
		diag.Loss = append(diag.Loss, loss)
		diag.Iterations = epoch

		if loss <= m.Tolerance {
			diag.Converged = true
			break
		}
		if loss < best*(1-m.Tolerance) {
			stall = 0
		} else {
			stall++
		}
		best = math.Min(best, loss)
		if stall >= m.Patience {
			diag.Converged = true
			break
		}

		c1 := 1 - math.Pow(adamBeta1, float64(epoch))
		c2 := 1 - math.Pow(adamBeta2, float64(epoch))
		for k, g := range grad {
			mom[k] = adamBeta1*mom[k] + (1-adamBeta1)*g
			vel[k] = adamBeta2*vel[k] + (1-adamBeta2)*g*g
			m.params[k] -= m.LearningRate * (mom[k] / c1) / (math.Sqrt(vel[k]/c2) + adamEps)
		}
	}

	if !diag.Converged {
		return diag, fmt.Errorf("mlp did not converge in %d epochs (loss %.6g): %w",
			m.MaxEpochs, diag.FinalLoss(), model.ErrConvergenceFailure)
	}
	return diag, nil
}

// forward returns the network output for standardized row z, filling hidden activations.
func (m *MLP) forward(z, hidden []float64) float64 {
	b1, w2 := m.offB1(), m.offW2()
	out := m.params[m.offB2()]
	for j := 0; j < m.Hidden; j++ {
		a := m.params[b1+j]
		row := m.params[j*m.width : (j+1)*m.width]
		for k, v := range z {
			a += row[k] * v
		}
		hidden[j] = math.Tanh(a)
		out += m.params[w2+j] * hidden[j]
	}
	return out
}

// backward accumulates the gradient of d*out into grad.
func (m *MLP) backward(z, hidden []float64, d float64, grad []float64) {
	b1, w2 := m.offB1(), m.offW2()
	grad[m.offB2()] += d
	for j := 0; j < m.Hidden; j++ {
		grad[w2+j] += d * hidden[j]
		dh := d * m.params[w2+j] * (1 - hidden[j]*hidden[j])
		grad[b1+j] += dh
		row := grad[j*m.width : (j+1)*m.width]
		for k, v := range z {
			row[k] += dh * v
		}
	}
}

func (m *MLP) Predict(X [][]float64) ([]float64, error) {
	if m.params == nil {
		return nil, errors.New("mlp: model is not fitted")
	}
	if err := checkWidth(X, m.width); err != nil {
		return nil, err
	}
	hidden := make([]float64, m.Hidden)
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.forward(m.xs.row(x), hidden)*m.yStd + m.yMean
	}
	return out, nil
}

package forecast

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"StockCast/internal/model"
)

// minRidge keeps the normal equations positive definite when columns are constant or collinear.
const minRidge = 1e-9

// Linear is least squares regression on standardized features with an L2 penalty of
// Lambda per row. The intercept is not penalised.
type Linear struct {
	Lambda float64

	name   string
	scaler *standardizer
	yMean  float64
	beta   []float64
}

func NewLinear(lambda float64) *Linear { return &Linear{Lambda: lambda, name: "linear"} }

func (m *Linear) Name() string {
	if m.name == "" {
		return "linear"
	}
	return m.name
}

func (m *Linear) MinSamples(features int) int {
	if features+2 > 10 {
		return features + 2
	}
	return 10
}

func (m *Linear) Fit(X [][]float64, y []float64) (model.Diagnostics, error) {
	p, err := checkFit(X, y)
	if err != nil {
		return model.Diagnostics{}, err
	}
	n := len(X)

	m.scaler = fitStandardizer(X)
	m.yMean = 0
	for _, v := range y {
		m.yMean += v
	}
	m.yMean /= float64(n)
	m.beta = make([]float64, p)

	if p > 0 {
		Z := mat.NewDense(n, p, nil)
		for i, row := range m.scaler.transform(X) {
			Z.SetRow(i, row)
		}
		yc := mat.NewVecDense(n, nil)
		for i, v := range y {
			yc.SetVec(i, v-m.yMean)
		}

		var A mat.Dense
		A.Mul(Z.T(), Z)
		lambda := m.Lambda
		if lambda < minRidge {
			lambda = minRidge
		}
		for j := 0; j < p; j++ {
			A.Set(j, j, A.At(j, j)+lambda*float64(n))
		}
		var b mat.VecDense
		b.MulVec(Z.T(), yc)

		var beta mat.VecDense
		if err := beta.SolveVec(&A, &b); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return model.Diagnostics{}, fmt.Errorf("solve normal equations: %w", err)
			}
		}
		for j := 0; j < p; j++ {
			m.beta[j] = beta.AtVec(j)
		}
	}

	pred, err := m.Predict(X)
	if err != nil {
		return model.Diagnostics{}, err
	}
	return model.Diagnostics{Loss: []float64{mse(pred, y)}, Converged: true, Iterations: 1}, nil
}

func (m *Linear) Predict(X [][]float64) ([]float64, error) {
	if m.scaler == nil {
		return nil, errors.New("linear: model is not fitted")
	}
	if err := checkWidth(X, len(m.beta)); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		v := m.yMean
		for j, z := range m.scaler.row(x) {
			v += m.beta[j] * z
		}
		out[i] = v
	}
	return out, nil
}

// Coefficients returns the fitted weights on standardized features.
func (m *Linear) Coefficients() []float64 {
	out := make([]float64, len(m.beta))
	copy(out, m.beta)
	return out
}

// ARIMA is an ARIMA(p,1,0) model: an autoregression of order P on the first differences,
// fitted by least squares with a drift term. It only reads the DIFF_1..DIFF_P columns.
type ARIMA struct {
	P   int
	lin *Linear
}

func NewARIMA(p int) *ARIMA { return &ARIMA{P: p} }

func (m *ARIMA) Name() string { return fmt.Sprintf("arima(%d,1,0)", m.P) }

func (m *ARIMA) MinSamples(features int) int { return 3*m.P + 10 }

func (m *ARIMA) Fit(X [][]float64, y []float64) (model.Diagnostics, error) {
	m.lin = &Linear{Lambda: 0, name: m.Name()}
	return m.lin.Fit(X, y)
}

func (m *ARIMA) Predict(X [][]float64) ([]float64, error) {
	if m.lin == nil {
		return nil, errors.New("arima: model is not fitted")
	}
	return m.lin.Predict(X)
}

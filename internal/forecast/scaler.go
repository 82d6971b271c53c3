package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// standardizer rescales columns to zero mean and unit variance.
// Constant columns keep a scale of 1 so they map to 0.
type standardizer struct {
	mean, std []float64
}

func fitStandardizer(X [][]float64) *standardizer {
	if len(X) == 0 {
		return &standardizer{}
	}
	p := len(X[0])
	s := &standardizer{mean: make([]float64, p), std: make([]float64, p)}
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		m, sd := stat.MeanStdDev(col, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		s.mean[j], s.std[j] = m, sd
	}
	return s
}

func (s *standardizer) row(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.mean[j]) / s.std[j]
	}
	return out
}

func (s *standardizer) transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		out[i] = s.row(x)
	}
	return out
}

// scale1 returns mean and a non-zero standard deviation of y.
func scale1(y []float64) (float64, float64) {
	m, sd := stat.MeanStdDev(y, nil)
	if sd == 0 || math.IsNaN(sd) {
		sd = 1
	}
	return m, sd
}

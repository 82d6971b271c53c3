// Package forecast builds supervised datasets from price series and fits the
// forecasting model variants. Every model learns the next-bar change in close;
// callers get price levels back through Trained.
package forecast

import (
	"fmt"

	"StockCast/internal/model"
)

// Model is a regression model over feature rows.
type Model interface {
	Name() string
	// MinSamples is the fewest training rows Fit accepts for the given feature count.
	MinSamples(features int) int
	Fit(X [][]float64, y []float64) (model.Diagnostics, error)
	Predict(X [][]float64) ([]float64, error)
}

func checkWidth(X [][]float64, width int) error {
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("feature row %d has %d columns, want %d", i, len(row), width)
		}
	}
	return nil
}

func checkFit(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("no training rows: %w", model.ErrInsufficientData)
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%d feature rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	return width, checkWidth(X, width)
}

func mse(pred, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	s := 0.0
	for i := range y {
		d := pred[i] - y[i]
		s += d * d
	}
	return s / float64(len(y))
}

package indicator

import (
	"errors"

	"StockCast/internal/model"
)

// SMA computes the simple moving average of values over period at every position.
// Position i covers values[i-period+1..i]; earlier positions are missing.
func SMA(values []float64, period int) []float64 {
	out := missingSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// LastSMA returns the simple moving average of the most recent period values.
func LastSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

func missingSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = model.Missing
	}
	return out
}

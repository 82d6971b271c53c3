package evaluate

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var errLength = errors.New("actual and predicted lengths differ")

// RMSE is the root mean squared error.
func RMSE(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, errLength
	}
	if len(actual) == 0 {
		return 0, nil
	}
	return floats.Distance(actual, predicted, 2) / math.Sqrt(float64(len(actual))), nil
}

// MAE is the mean absolute error.
func MAE(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, errLength
	}
	if len(actual) == 0 {
		return 0, nil
	}
	return floats.Distance(actual, predicted, 1) / float64(len(actual)), nil
}

// MAPE is the mean absolute percentage error in percent. Rows with a zero actual are skipped;
// NaN is returned when every actual is zero.
func MAPE(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, errLength
	}
	sum, n := 0.0, 0
	for i, a := range actual {
		if a == 0 {
			continue
		}
		sum += math.Abs((a - predicted[i]) / a)
		n++
	}
	if n == 0 {
		return math.NaN(), nil
	}
	return 100 * sum / float64(n), nil
}

// R2 is the coefficient of determination of predicted against actual.
func R2(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, errLength
	}
	if len(actual) < 2 {
		return math.NaN(), nil
	}
	return stat.RSquaredFrom(predicted, actual, nil), nil
}

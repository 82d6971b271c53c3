package indicator

import "gonum.org/v1/gonum/stat"

// Bollinger returns the upper, middle and lower bands: SMA(period) ± k sample standard deviations.
func Bollinger(closes []float64, period int, k float64) (upper, mid, lower []float64) {
	n := len(closes)
	upper, mid, lower = missingSlice(n), missingSlice(n), missingSlice(n)
	if period < 2 {
		return upper, mid, lower
	}
	for i := period - 1; i < n; i++ {
		mean, std := stat.MeanStdDev(closes[i-period+1:i+1], nil)
		mid[i] = mean
		upper[i] = mean + k*std
		lower[i] = mean - k*std
	}
	return upper, mid, lower
}

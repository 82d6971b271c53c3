package indicator

import (
	"fmt"
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"StockCast/internal/model"
)

// toTimeSeries converts bars into a techan series. Every bar becomes a one-second candle
// starting at its timestamp so consecutive bars never overlap.
func toTimeSeries(bars []model.OHLCV) (*techan.TimeSeries, error) {
	ts := techan.NewTimeSeries()
	for i, b := range bars {
		candle := techan.NewCandle(techan.NewTimePeriod(b.Time, time.Second))
		candle.OpenPrice = big.NewDecimal(b.Open)
		candle.ClosePrice = big.NewDecimal(b.Close)
		candle.MaxPrice = big.NewDecimal(b.High)
		candle.MinPrice = big.NewDecimal(b.Low)
		candle.Volume = big.NewDecimal(b.Volume)
		if !ts.AddCandle(candle) {
			return nil, fmt.Errorf("bar %d at %s is out of order", i, b.Time.Format(time.RFC3339))
		}
	}
	return ts, nil
}

// sample evaluates ind at every position from first onward.
func sample(ind techan.Indicator, n, first int) []float64 {
	out := missingSlice(n)
	if first < 0 {
		first = 0
	}
	for i := first; i < n; i++ {
		out[i] = ind.Calculate(i).Float()
	}
	return out
}

// EMA is the exponential moving average of closes, seeded with the SMA of the first window.
func EMA(ts *techan.TimeSeries, window int) []float64 {
	closes := techan.NewClosePriceIndicator(ts)
	return sample(techan.NewEMAIndicator(closes, window), len(ts.Candles), window-1)
}

// MACD returns the MACD line (fast EMA minus slow EMA), its signal line and the histogram.
func MACD(ts *techan.TimeSeries, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(ts.Candles)
	closes := techan.NewClosePriceIndicator(ts)
	line = sample(techan.NewMACDIndicator(closes, fast, slow), n, slow-1)
	sig = emaFrom(line, slow-1, signal)
	hist = missingSlice(n)
	for i := range hist {
		if !model.IsMissing(line[i]) && !model.IsMissing(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return line, sig, hist
}

// ATR is the average true range over window. Position i needs the close before the window.
func ATR(ts *techan.TimeSeries, window int) []float64 {
	return sample(techan.NewAverageTrueRangeIndicator(ts, window), len(ts.Candles), window)
}

// emaFrom runs an SMA-seeded EMA over values[start:]; values before start are ignored.
func emaFrom(values []float64, start, window int) []float64 {
	out := missingSlice(len(values))
	if start < 0 || window <= 0 || len(values)-start < window {
		return out
	}
	seed := start + window - 1
	sum := 0.0
	for i := start; i <= seed; i++ {
		sum += values[i]
	}
	prev := sum / float64(window)
	out[seed] = prev
	alpha := 2.0 / float64(window+1)
	for i := seed + 1; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

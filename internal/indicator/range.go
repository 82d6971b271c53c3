package indicator

import (
	"errors"
	"math"

	"StockCast/internal/model"
)

// Lookbacks in trading days.
const (
	TradingDaysYear  = 252
	TradingDaysMonth = 22
)

// RollingHigh returns the highest High over the trailing period at every position.
func RollingHigh(bars []model.OHLCV, period int) []float64 {
	return rolling(bars, period, func(b model.OHLCV) float64 { return b.High }, math.Max)
}

// RollingLow returns the lowest Low over the trailing period at every position.
func RollingLow(bars []model.OHLCV, period int) []float64 {
	return rolling(bars, period, func(b model.OHLCV) float64 { return b.Low }, math.Min)
}

func rolling(bars []model.OHLCV, period int, field func(model.OHLCV) float64, pick func(a, b float64) float64) []float64 {
	out := missingSlice(len(bars))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(bars); i++ {
		v := field(bars[i-period+1])
		for j := i - period + 2; j <= i; j++ {
			v = pick(v, field(bars[j]))
		}
		out[i] = v
	}
	return out
}

// LogReturns returns ln(close[i]/close[i-1]); position 0 is missing.
func LogReturns(closes []float64) []float64 {
	out := missingSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out[i] = 0
			continue
		}
		out[i] = math.Log(cur / prev)
	}
	return out
}

// RecentRange scans the most recent lookback bars and returns the high and low.
// Shorter histories are scanned in full.
func RecentRange(bars []model.OHLCV, lookback int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	n := len(bars)
	start := n - lookback
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// RangePosition returns where current sits within [low, high], clamped to 0.0~1.0.
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}

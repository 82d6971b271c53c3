package outlook

import (
	"fmt"
	"math"

	"StockCast/internal/model"
)

// Factor weights. They sum to 1.
const (
	weightMA200      = 0.35
	weightWeeklyRSI  = 0.25
	weightDailyRSI   = 0.15
	weightPosition   = 0.10
	weightTrendAlign = 0.15
)

const (
	FactorMA200     = "MA200 deviation"
	FactorWeeklyRSI = "Weekly RSI"
	FactorDailyRSI  = "Daily RSI"
	FactorPosition  = "52-week position"
	FactorTrend     = "Trend alignment"
)

// band maps values up to and including Max onto Score.
type band struct {
	Max   float64
	Score float64
}

// ladder scores a value against ascending bands; values above the last band get the floor.
func ladder(v float64, bands []band, floor float64) float64 {
	for _, b := range bands {
		if v <= b.Max {
			return b.Score
		}
	}
	return floor
}

var (
	deviationBands = []band{{-20, 2}, {-10, 1.5}, {-5, 1}, {0, 0.5}, {5, 0}, {10, -0.5}, {15, -1}, {20, -1.5}}
	rsiBands       = []band{{25, 2}, {30, 1.5}, {40, 1}, {45, 0.5}, {55, 0}, {60, -0.5}, {70, -1}, {80, -1.5}}
	positionBands  = []band{{10, 2}, {20, 1.5}, {30, 1}, {40, 0.5}, {60, 0}, {70, -0.5}, {80, -1}, {95, -1.5}}
)

func factor(name string, raw, weight float64, commentary string) model.FactorScore {
	return model.FactorScore{Name: name, RawScore: raw, Weight: weight, Weighted: raw * weight, Commentary: commentary}
}

// scoreMA200Deviation rewards prices far below their 200-day average.
func scoreMA200Deviation(s *model.Snapshot) model.FactorScore {
	if s.MA200 == 0 {
		return factor(FactorMA200, 0, weightMA200, "MA200 unavailable")
	}
	deviation := (s.CurrentPrice - s.MA200) / s.MA200 * 100
	return factor(FactorMA200, ladder(deviation, deviationBands, -2), weightMA200,
		fmt.Sprintf("%+.1f%% from MA200", deviation))
}

func scoreRSI(name string, rsi, weight float64) model.FactorScore {
	return factor(name, ladder(rsi, rsiBands, -2), weight, fmt.Sprintf("RSI=%.0f", rsi))
}

// score52WeekPosition scores the position in the 52-week range. Above 95% it only reaches -2
// when the other factors already average below -1; otherwise it is capped at -1.
func score52WeekPosition(s *model.Snapshot, otherFactorsAvg float64) model.FactorScore {
	pos := s.Position52w * 100
	score := ladder(pos, positionBands, -1)
	if pos > 95 && otherFactorsAvg < -1 {
		score = -2
	}
	return factor(FactorPosition, score, weightPosition, fmt.Sprintf("at %.0f%% of range", pos))
}

// scoreTrendAlignment looks at price vs weekly MA20/MA50 ordering and 30-day extremes.
func scoreTrendAlignment(s *model.Snapshot) model.FactorScore {
	bullish := s.CurrentPrice > s.MA20w && s.MA20w > s.MA50w
	bearish := s.CurrentPrice < s.MA20w && s.MA20w < s.MA50w
	nearHigh := s.High30d > 0 && math.Abs(s.CurrentPrice-s.High30d)/s.High30d < 0.01
	nearLow := s.Low30d > 0 && math.Abs(s.CurrentPrice-s.Low30d)/s.Low30d < 0.01

	switch {
	case bullish && nearHigh:
		return factor(FactorTrend, 1.5, weightTrendAlign, "bullish alignment at 30-day high")
	case bullish:
		return factor(FactorTrend, 1.0, weightTrendAlign, "bullish alignment")
	case bearish && nearLow:
		return factor(FactorTrend, -1.0, weightTrendAlign, "bearish alignment at 30-day low")
	case bearish:
		return factor(FactorTrend, -0.5, weightTrendAlign, "bearish alignment")
	default:
		return factor(FactorTrend, 0, weightTrendAlign, "range-bound")
	}
}

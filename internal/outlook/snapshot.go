package outlook

import (
	"StockCast/internal/indicator"
	"StockCast/internal/logger"
	"StockCast/internal/model"
)

// Snapshot computes the outlook readings from a daily series. Readings that lack history fall
// back to neutral values (the current price for averages, 50 for RSI) and are logged.
func Snapshot(series *model.PriceSeries, log *logger.Logger) *model.Snapshot {
	if log == nil {
		log = logger.Nop()
	}
	daily := series.Bars()
	weekly := series.Weekly()
	closes := series.Closes()
	weeklyCloses := weekly.Closes()

	price := series.Last().Close
	snap := &model.Snapshot{CurrentPrice: price}
	warn := func(reading string, err error) {
		log.Warn("outlook reading unavailable", logger.String("symbol", series.Symbol()),
			logger.String("reading", reading), logger.Error(err))
	}

	average := func(reading string, values []float64, period int) float64 {
		v, err := indicator.LastSMA(values, period)
		if err != nil {
			warn(reading, err)
			return price
		}
		return v
	}
	snap.MA200 = average("MA200", closes, 200)
	snap.MA20w = average("MA20w", weeklyCloses, 20)
	snap.MA50w = average("MA50w", weeklyCloses, 50)

	snap.WeeklyRSI, _ = indicator.LastRSI(weeklyCloses, 14)
	snap.DailyRSI, _ = indicator.LastRSI(closes, 14)

	var err error
	if snap.High52w, snap.Low52w, err = indicator.RecentRange(daily, indicator.TradingDaysYear); err != nil {
		warn("52-week range", err)
		snap.High52w, snap.Low52w = price, price
	}
	if snap.High30d, snap.Low30d, err = indicator.RecentRange(daily, indicator.TradingDaysMonth); err != nil {
		warn("30-day range", err)
		snap.High30d, snap.Low30d = price, price
	}
	if snap.Position52w, err = indicator.RangePosition(price, snap.High52w, snap.Low52w); err != nil {
		warn("52-week position", err)
		snap.Position52w = 0.5
	}
	return snap
}

// Analyze computes the snapshot of series and scores it.
func Analyze(series *model.PriceSeries, log *logger.Logger) *model.Outlook {
	return Evaluate(series.Symbol(), Snapshot(series, log))
}

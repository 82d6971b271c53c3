package collector

import (
	"context"
	"math"
	"time"

	"StockCast/internal/model"
)

// MockFetcher returns controllable synthetic data for development and testing.
type MockFetcher struct {
	Price float64       // first close
	Step  float64       // change per bar
	Wave  float64       // amplitude of a sine component added to the trend
	Bars  []model.OHLCV // fixed data, returned as-is when set
	Err   error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, _ string, from, to time.Time) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	price := m.Price
	if price == 0 {
		price = 100
	}
	days := BusinessDays(from, to)
	bars := make([]model.OHLCV, len(days))
	for i, d := range days {
		c := price + m.Step*float64(i) + m.Wave*math.Sin(float64(i)/5)
		bars[i] = model.OHLCV{
			Time:   d,
			Open:   c * 0.999,
			High:   c * 1.005,
			Low:    c * 0.995,
			Close:  c,
			Volume: 1000000,
		}
	}
	return bars, nil
}

// LinearBars returns n business-day bars starting at start with closes price, price+step, ...
func LinearBars(start time.Time, n int, price, step float64) []model.OHLCV {
	bars := make([]model.OHLCV, 0, n)
	d := dayOf(start, time.UTC)
	for len(bars) < n {
		if isBusinessDay(d) {
			c := price + step*float64(len(bars))
			bars = append(bars, model.OHLCV{Time: d, Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000})
		}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

// BusinessDays lists the weekdays in [from, to] as UTC midnights.
func BusinessDays(from, to time.Time) []time.Time {
	var days []time.Time
	for d := dayOf(from, time.UTC); !d.After(to); d = d.AddDate(0, 0, 1) {
		if isBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}

func isBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

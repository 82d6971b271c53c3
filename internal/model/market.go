package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an immutable, time-ordered sequence of bars for one symbol.
// Timestamps are strictly increasing.
type PriceSeries struct {
	symbol    string
	bars      []OHLCV
	fetchedAt time.Time
}

// NewPriceSeries copies and sorts bars. Duplicate timestamps are rejected.
func NewPriceSeries(symbol string, bars []OHLCV) (*PriceSeries, error) {
	cp := make([]OHLCV, len(bars))
	copy(cp, bars)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Time.Before(cp[j].Time) })
	for i := 1; i < len(cp); i++ {
		if cp[i].Time.Equal(cp[i-1].Time) {
			return nil, &RecordError{Row: i, Field: "time", Err: fmt.Errorf("duplicate timestamp %s", cp[i].Time.Format(time.RFC3339))}
		}
	}
	return &PriceSeries{symbol: symbol, bars: cp, fetchedAt: time.Now()}, nil
}

func (s *PriceSeries) Symbol() string       { return s.symbol }
func (s *PriceSeries) Len() int             { return len(s.bars) }
func (s *PriceSeries) FetchedAt() time.Time { return s.fetchedAt }

// Bar returns the i-th bar.
func (s *PriceSeries) Bar(i int) OHLCV { return s.bars[i] }

// Last returns the most recent bar. The series must not be empty.
func (s *PriceSeries) Last() OHLCV { return s.bars[len(s.bars)-1] }

// Bars returns a copy of the bars.
func (s *PriceSeries) Bars() []OHLCV {
	cp := make([]OHLCV, len(s.bars))
	copy(cp, s.bars)
	return cp
}

// Closes extracts the close prices.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.bars))
	for i, b := range s.bars {
		closes[i] = b.Close
	}
	return closes
}

// Times extracts the bar timestamps.
func (s *PriceSeries) Times() []time.Time {
	ts := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		ts[i] = b.Time
	}
	return ts
}

// Window returns the bars whose time falls in [from, to]. Zero bounds are open.
func (s *PriceSeries) Window(from, to time.Time) *PriceSeries {
	out := make([]OHLCV, 0, len(s.bars))
	for _, b := range s.bars {
		if !from.IsZero() && b.Time.Before(from) {
			continue
		}
		if !to.IsZero() && b.Time.After(to) {
			continue
		}
		out = append(out, b)
	}
	return &PriceSeries{symbol: s.symbol, bars: out, fetchedAt: s.fetchedAt}
}

// Head returns the first n bars as a new series.
func (s *PriceSeries) Head(n int) *PriceSeries {
	if n > len(s.bars) {
		n = len(s.bars)
	}
	out := make([]OHLCV, n)
	copy(out, s.bars[:n])
	return &PriceSeries{symbol: s.symbol, bars: out, fetchedAt: s.fetchedAt}
}

// Append returns a new series with bar added at the end.
func (s *PriceSeries) Append(bar OHLCV) (*PriceSeries, error) {
	if len(s.bars) > 0 && !bar.Time.After(s.Last().Time) {
		return nil, &RecordError{Row: len(s.bars), Field: "time", Err: fmt.Errorf("bar at %s is not after last bar", bar.Time.Format(time.RFC3339))}
	}
	out := make([]OHLCV, len(s.bars), len(s.bars)+1)
	copy(out, s.bars)
	out = append(out, bar)
	return &PriceSeries{symbol: s.symbol, bars: out, fetchedAt: s.fetchedAt}, nil
}

// Weekly aggregates the bars into ISO-week bars (first open, max high, min low, last close, summed volume).
func (s *PriceSeries) Weekly() *PriceSeries {
	return &PriceSeries{symbol: s.symbol, bars: aggregateWeekly(s.bars), fetchedAt: s.fetchedAt}
}

func aggregateWeekly(daily []OHLCV) []OHLCV {
	if len(daily) == 0 {
		return nil
	}
	var weekly []OHLCV
	week := daily[0]
	wy, ww := week.Time.ISOWeek()

	for _, d := range daily[1:] {
		y, w := d.Time.ISOWeek()
		if y != wy || w != ww {
			weekly = append(weekly, week)
			week = d
			wy, ww = y, w
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
	}
	return append(weekly, week)
}

type seriesJSON struct {
	Symbol    string    `json:"symbol"`
	FetchedAt time.Time `json:"fetched_at"`
	Bars      []OHLCV   `json:"bars"`
}

func (s *PriceSeries) MarshalJSON() ([]byte, error) {
	return json.Marshal(seriesJSON{Symbol: s.symbol, FetchedAt: s.fetchedAt, Bars: s.bars})
}

func (s *PriceSeries) UnmarshalJSON(data []byte) error {
	var raw seriesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ps, err := NewPriceSeries(raw.Symbol, raw.Bars)
	if err != nil {
		return err
	}
	ps.fetchedAt = raw.FetchedAt
	*s = *ps
	return nil
}

package forecast

import (
	"fmt"
	"time"

	"StockCast/internal/model"
)

// Dataset is a supervised view of a series: row t holds features known at bar t
// and the change in close from bar t to t+1.
type Dataset struct {
	Columns []string
	X       [][]float64
	Y       []float64   // close[t+1] - close[t]
	Base    []float64   // close[t]
	Times   []time.Time // time of bar t+1, the bar being predicted
	Dropped int         // rows skipped for missing features
}

func (d *Dataset) Len() int { return len(d.Y) }

// Actual returns the target close levels.
func (d *Dataset) Actual() []float64 {
	out := make([]float64, len(d.Y))
	for i := range d.Y {
		out[i] = d.Base[i] + d.Y[i]
	}
	return out
}

// Split cuts the dataset chronologically: the first fraction of rows trains, the rest tests.
func (d *Dataset) Split(fraction float64) (train, test *Dataset) {
	cut := int(float64(d.Len()) * fraction)
	if cut < 0 {
		cut = 0
	}
	if cut > d.Len() {
		cut = d.Len()
	}
	return d.slice(0, cut), d.slice(cut, d.Len())
}

func (d *Dataset) slice(from, to int) *Dataset {
	return &Dataset{
		Columns: d.Columns,
		X:       d.X[from:to],
		Y:       d.Y[from:to],
		Base:    d.Base[from:to],
		Times:   d.Times[from:to],
	}
}

// DiffColumn names the k-th lagged one-bar change.
func DiffColumn(k int) string { return fmt.Sprintf("DIFF_%d", k) }

// Columns lists the feature names for lags and indicator features.
func Columns(lags int, features []string) []string {
	cols := make([]string, 0, lags+len(features))
	for k := 1; k <= lags; k++ {
		cols = append(cols, DiffColumn(k))
	}
	return append(cols, features...)
}

// BuildDataset assembles rows from series and set. Every feature must be a column of set.
func BuildDataset(series *model.PriceSeries, set *model.IndicatorSet, lags int, features []string) (*Dataset, error) {
	if set.Len() != series.Len() {
		return nil, fmt.Errorf("indicator set has %d rows, series has %d", set.Len(), series.Len())
	}
	for _, f := range features {
		if _, ok := set.Get(f); !ok {
			return nil, fmt.Errorf("feature %s is not a computed indicator", f)
		}
	}

	closes := series.Closes()
	ds := &Dataset{Columns: Columns(lags, features)}
	for t := 0; t+1 < len(closes); t++ {
		row, ok := featureRow(closes, set, t, lags, features)
		if !ok {
			ds.Dropped++
			continue
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, closes[t+1]-closes[t])
		ds.Base = append(ds.Base, closes[t])
		ds.Times = append(ds.Times, series.Bar(t+1).Time)
	}
	return ds, nil
}

// featureRow builds the features for bar t; ok is false when any value is missing.
func featureRow(closes []float64, set *model.IndicatorSet, t, lags int, features []string) ([]float64, bool) {
	if t-lags < 0 {
		return nil, false
	}
	row := make([]float64, 0, lags+len(features))
	for k := 1; k <= lags; k++ {
		row = append(row, closes[t-k+1]-closes[t-k])
	}
	for _, f := range features {
		v, ok := set.At(f, t)
		if !ok {
			return nil, false
		}
		row = append(row, v)
	}
	return row, true
}

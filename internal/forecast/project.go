package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"StockCast/internal/model"
)

// IndicatorBuilder recomputes indicators for an extended series.
type IndicatorBuilder interface {
	Build(series *model.PriceSeries) (*model.IndicatorSet, error)
}

// ProjectOptions controls a multi-step projection.
type ProjectOptions struct {
	Days       int     // bars to project
	Confidence float64 // band coverage, e.g. 0.95
	Sigma      float64 // one-step error scale, usually the held-out RMSE
}

// Project forecasts opts.Days business days past the end of series. Each step predicts one bar,
// appends it and recomputes indicators so the next step sees it. The band widens as sigma·√k.
func Project(ctx context.Context, t *Trained, series *model.PriceSeries, builder IndicatorBuilder, opts ProjectOptions) (*model.Forecast, error) {
	if opts.Days <= 0 {
		return nil, fmt.Errorf("projection needs a positive number of days, got %d", opts.Days)
	}
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		return nil, fmt.Errorf("confidence %v must be in (0, 1)", opts.Confidence)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("empty series: %w", model.ErrInsufficientData)
	}

	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - (1-opts.Confidence)/2)
	fc := &model.Forecast{
		Symbol:     series.Symbol(),
		Model:      t.Name(),
		Confidence: opts.Confidence,
		LastClose:  series.Last().Close,
		Points:     make([]model.ForecastPoint, 0, opts.Days),
	}

	current := series
	for k := 1; k <= opts.Days; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set, err := builder.Build(current)
		if err != nil {
			return nil, err
		}
		next, err := t.PredictNext(current, set)
		if err != nil {
			return nil, fmt.Errorf("projection step %d: %w", k, err)
		}

		last := current.Last()
		bar := model.OHLCV{
			Time:   NextBusinessDay(last.Time),
			Open:   last.Close,
			High:   math.Max(last.Close, next),
			Low:    math.Min(last.Close, next),
			Close:  next,
			Volume: last.Volume,
		}
		if current, err = current.Append(bar); err != nil {
			return nil, err
		}

		half := z * opts.Sigma * math.Sqrt(float64(k))
		fc.Points = append(fc.Points, model.ForecastPoint{
			Time:  bar.Time,
			Value: next,
			Lower: next - half,
			Upper: next + half,
		})
	}
	return fc, nil
}

// NextBusinessDay returns the next weekday after t at the same clock time.
func NextBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"StockCast/internal/cache"
	"StockCast/internal/logger"
	"StockCast/internal/model"
)

// Loader turns raw fetcher output into a clean PriceSeries.
type Loader struct {
	fetcher       Fetcher
	cache         cache.BytesCache
	ttl           time.Duration
	log           *logger.Logger
	lookbackYears int
	now           func() time.Time
}

type LoaderOption func(*Loader)

// WithCache enables a read-through cache of loaded series.
func WithCache(c cache.BytesCache, ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.cache = c
		l.ttl = ttl
	}
}

func WithLogger(log *logger.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// WithLookbackYears sets the range used when Load gets a zero from.
func WithLookbackYears(years int) LoaderOption {
	return func(l *Loader) { l.lookbackYears = years }
}

func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

func NewLoader(fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher:       fetcher,
		log:           logger.Nop(),
		lookbackYears: 5,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source names the underlying fetcher.
func (l *Loader) Source() string { return l.fetcher.Name() }

// Load fetches bars for symbol in [from, to]. Zero bounds default to the lookback window ending now.
// It fails with model.ErrDataUnavailable when nothing is left after cleaning and with
// model.ErrMalformedRecord when a bar is not a valid OHLCV tuple.
func (l *Loader) Load(ctx context.Context, symbol string, from, to time.Time) (*model.PriceSeries, error) {
	if to.IsZero() {
		to = l.now()
	}
	if from.IsZero() {
		from = to.AddDate(-l.lookbackYears, 0, 0)
	}
	if from.After(to) {
		return nil, fmt.Errorf("load %s: range %s..%s is empty: %w", symbol,
			from.Format(csvDateLayout), to.Format(csvDateLayout), model.ErrDataUnavailable)
	}

	key := cache.Key("series", l.fetcher.Name(), symbol, from.Format(csvDateLayout), to.Format(csvDateLayout))
	if l.cache != nil {
		if b, ok, err := l.cache.GetBytes(ctx, key); err != nil {
			l.log.Warn("series cache read failed", logger.String("key", key), logger.Error(err))
		} else if ok {
			var series model.PriceSeries
			if err := series.UnmarshalJSON(b); err == nil {
				l.log.Debug("series cache hit", logger.String("symbol", symbol))
				return &series, nil
			}
		}
	}

	start := time.Now()
	raw, err := l.fetcher.FetchBars(ctx, symbol, from, to)
	if err != nil {
		if model.Kind(err) == nil && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", model.ErrDataUnavailable, err)
		}
		return nil, fmt.Errorf("load %s from %s: %w", symbol, l.fetcher.Name(), err)
	}

	series, dups, err := Clean(symbol, raw, from, to)
	if err != nil {
		return nil, fmt.Errorf("load %s from %s: %w", symbol, l.fetcher.Name(), err)
	}
	if dups > 0 {
		l.log.Warn("dropped duplicate bars", logger.String("symbol", symbol), logger.Int("count", dups))
	}
	l.log.Info("series loaded",
		logger.String("symbol", symbol),
		logger.String("source", l.fetcher.Name()),
		logger.Int("bars", series.Len()),
		logger.Duration("elapsed", time.Since(start)))

	if l.cache != nil {
		if b, err := series.MarshalJSON(); err == nil {
			if err := l.cache.SetBytes(ctx, key, b, l.ttl); err != nil {
				l.log.Warn("series cache write failed", logger.String("key", key), logger.Error(err))
			}
		}
	}
	return series, nil
}

// Clean validates raw bars, sorts them, removes duplicate timestamps (the last occurrence wins)
// and clips the result to [from, to]. It returns the number of duplicates removed.
func Clean(symbol string, raw []model.OHLCV, from, to time.Time) (*model.PriceSeries, int, error) {
	bars := make([]model.OHLCV, 0, len(raw))
	for i, b := range raw {
		fixed, err := validateBar(i, b)
		if err != nil {
			return nil, 0, err
		}
		bars = append(bars, fixed)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	deduped := bars[:0]
	dups := 0
	for _, b := range bars {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(b.Time) {
			deduped[n-1] = b
			dups++
			continue
		}
		deduped = append(deduped, b)
	}

	lower := dayOf(from, time.UTC)
	clipped := make([]model.OHLCV, 0, len(deduped))
	for _, b := range deduped {
		if b.Time.Before(lower) || b.Time.After(to) {
			continue
		}
		clipped = append(clipped, b)
	}
	if len(clipped) == 0 {
		return nil, dups, fmt.Errorf("no bars for %s between %s and %s: %w", symbol,
			from.Format(csvDateLayout), to.Format(csvDateLayout), model.ErrDataUnavailable)
	}

	series, err := model.NewPriceSeries(symbol, clipped)
	return series, dups, err
}

const rangeSlack = 1e-9

func validateBar(row int, b model.OHLCV) (model.OHLCV, error) {
	for _, f := range []struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return b, &model.RecordError{Row: row, Field: f.name, Err: errors.New("not a finite number")}
		}
	}
	if b.Time.IsZero() {
		return b, &model.RecordError{Row: row, Field: "time", Err: errors.New("missing timestamp")}
	}
	if b.Close <= 0 {
		return b, &model.RecordError{Row: row, Field: "close", Err: fmt.Errorf("close %v is not positive", b.Close)}
	}
	if b.Open == 0 {
		b.Open = b.Close
	}
	if b.High == 0 {
		b.High = math.Max(b.Open, b.Close)
	}
	if b.Low == 0 {
		b.Low = math.Min(b.Open, b.Close)
	}
	if b.Open < 0 {
		return b, &model.RecordError{Row: row, Field: "open", Err: fmt.Errorf("negative open %v", b.Open)}
	}
	if b.Low < 0 {
		return b, &model.RecordError{Row: row, Field: "low", Err: fmt.Errorf("negative low %v", b.Low)}
	}
	if b.High < b.Low {
		return b, &model.RecordError{Row: row, Field: "high", Err: fmt.Errorf("high %v below low %v", b.High, b.Low)}
	}
	// adjusted bars are scaled bar by bar, so allow for rounding at the edges
	slack := b.Close * rangeSlack
	if b.Close < b.Low-slack || b.Close > b.High+slack {
		return b, &model.RecordError{Row: row, Field: "close",
			Err: fmt.Errorf("close %v outside [%v, %v]", b.Close, b.Low, b.High)}
	}
	if b.Volume < 0 {
		return b, &model.RecordError{Row: row, Field: "volume", Err: fmt.Errorf("negative volume %v", b.Volume)}
	}
	return b, nil
}

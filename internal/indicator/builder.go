package indicator

import (
	"fmt"

	"StockCast/internal/model"
)

// Builder computes a fixed list of indicators over price series.
type Builder struct {
	specs []Spec
}

// NewBuilder parses specs. Unknown kinds, bad windows and duplicate outputs are rejected.
func NewBuilder(specs []string) (*Builder, error) {
	b := &Builder{}
	seen := make(map[string]bool)
	for _, raw := range specs {
		spec, err := ParseSpec(raw)
		if err != nil {
			return nil, err
		}
		for _, out := range spec.Outputs() {
			if seen[out] {
				return nil, fmt.Errorf("indicator %q: duplicate output %s", raw, out)
			}
			seen[out] = true
		}
		b.specs = append(b.specs, spec)
	}
	return b, nil
}

// Specs returns the parsed indicator specs in configuration order.
func (b *Builder) Specs() []Spec {
	out := make([]Spec, len(b.specs))
	copy(out, b.specs)
	return out
}

// Outputs lists every column Build produces, in order.
func (b *Builder) Outputs() []string {
	var out []string
	for _, s := range b.specs {
		out = append(out, s.Outputs()...)
	}
	return out
}

// Has reports whether Build produces the named column.
func (b *Builder) Has(name string) bool {
	for _, out := range b.Outputs() {
		if out == name {
			return true
		}
	}
	return false
}

// Build computes every indicator over series. Every output has series.Len() values;
// positions without enough history are model.Missing.
func (b *Builder) Build(series *model.PriceSeries) (*model.IndicatorSet, error) {
	n := series.Len()
	set := model.NewIndicatorSet(n)
	bars := series.Bars()
	closes := series.Closes()

	ts, err := toTimeSeries(bars)
	if err != nil {
		return nil, fmt.Errorf("build indicators for %s: %w", series.Symbol(), err)
	}

	for _, s := range b.specs {
		cols := make(map[string][]float64, 3)
		switch s.Kind {
		case KindSMA:
			cols[s.Name] = SMA(closes, s.Window)
		case KindEMA:
			cols[s.Name] = EMA(ts, s.Window)
		case KindRSI:
			cols[s.Name] = RSI(closes, s.Window)
		case KindMACD:
			line, sig, hist := MACD(ts, s.Window, s.Slow, s.Signal)
			cols[s.Name], cols[s.Name+"_SIGNAL"], cols[s.Name+"_HIST"] = line, sig, hist
		case KindBB:
			upper, mid, lower := Bollinger(closes, s.Window, s.K)
			cols[s.Name+"_UPPER"], cols[s.Name+"_MID"], cols[s.Name+"_LOWER"] = upper, mid, lower
		case KindATR:
			cols[s.Name] = ATR(ts, s.Window)
		case KindHigh:
			cols[s.Name] = RollingHigh(bars, s.Window)
		case KindLow:
			cols[s.Name] = RollingLow(bars, s.Window)
		case KindLogRet:
			cols[s.Name] = LogReturns(closes)
		}
		for _, name := range s.Outputs() {
			if err := set.Add(name, cols[name]); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

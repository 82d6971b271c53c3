package model

import (
	"fmt"
	"math"
)

// Missing is the marker for positions where an indicator's lookback exceeds the available history.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// IndicatorSet maps indicator names (e.g. "SMA_20", "RSI_14", "MACD") to slices aligned with a PriceSeries.
type IndicatorSet struct {
	n      int
	names  []string
	values map[string][]float64
}

// NewIndicatorSet creates an empty set for a series of length n.
func NewIndicatorSet(n int) *IndicatorSet {
	return &IndicatorSet{n: n, values: make(map[string][]float64)}
}

// Len is the series length every indicator is aligned to.
func (s *IndicatorSet) Len() int { return s.n }

// Add stores values under name. The slice must match the series length.
func (s *IndicatorSet) Add(name string, values []float64) error {
	if len(values) != s.n {
		return fmt.Errorf("indicator %s: length %d, want %d", name, len(values), s.n)
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = values
	return nil
}

// Get returns the slice stored under name.
func (s *IndicatorSet) Get(name string) ([]float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

// At returns the value of name at position i; ok is false when missing or unknown.
func (s *IndicatorSet) At(name string, i int) (float64, bool) {
	v, found := s.values[name]
	if !found || i < 0 || i >= len(v) || IsMissing(v[i]) {
		return 0, false
	}
	return v[i], true
}

// Latest returns the last value of name.
func (s *IndicatorSet) Latest(name string) (float64, bool) {
	return s.At(name, s.n-1)
}

// Names lists indicator names in insertion order.
func (s *IndicatorSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

package forecast

import (
	"errors"
	"fmt"
	"strings"

	"StockCast/internal/model"
)

// Variant selects a model family.
type Variant string

const (
	VariantLinear           Variant = "linear"
	VariantARIMA            Variant = "arima"
	VariantRandomForest     Variant = "random_forest"
	VariantGradientBoosting Variant = "gradient_boosting"
	VariantMLP              Variant = "mlp"
)

// Variants lists every supported variant.
func Variants() []Variant {
	return []Variant{VariantLinear, VariantARIMA, VariantRandomForest, VariantGradientBoosting, VariantMLP}
}

// ParseVariant accepts a variant name case-insensitively.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variants() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown model variant %q", s)
}

type ForestParams struct {
	Trees           int
	MaxDepth        int
	MinLeaf         int
	FeatureFraction float64
	Seed            int64
}

type BoostingParams struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
	Patience     int
}

type MLPParams struct {
	Hidden       int
	LearningRate float64
	MaxEpochs    int
	Tolerance    float64
	Patience     int
	Seed         int64
}

// Spec describes what to train: the variant, its features and its hyperparameters.
type Spec struct {
	Variant  Variant
	Lags     int
	Features []string
	Ridge    float64
	ARIMAP   int
	Forest   ForestParams
	Boosting BoostingParams
	MLP      MLPParams
}

// DefaultSpec returns the stock hyperparameters for variant.
func DefaultSpec(variant Variant) Spec {
	return Spec{
		Variant: variant,
		Lags:    5,
		Ridge:   1e-3,
		ARIMAP:  5,
		Forest:  ForestParams{Trees: 100, MaxDepth: 8, MinLeaf: 5, FeatureFraction: 0.5, Seed: 42},
		Boosting: BoostingParams{
			Rounds: 200, LearningRate: 0.1, MaxDepth: 3, MinLeaf: 5, Patience: 10,
		},
		MLP: MLPParams{Hidden: 16, LearningRate: 0.01, MaxEpochs: 1000, Tolerance: 1e-3, Patience: 20, Seed: 42},
	}
}

// Layout returns the lag count and indicator features the variant actually reads.
// ARIMA only sees its own P differences.
func (s Spec) Layout() (lags int, features []string) {
	if s.Variant == VariantARIMA {
		return s.ARIMAP, nil
	}
	return s.Lags, s.Features
}

// NewModel instantiates an unfitted model for the spec.
func (s Spec) NewModel() (Model, error) {
	switch s.Variant {
	case VariantLinear:
		return NewLinear(s.Ridge), nil
	case VariantARIMA:
		if s.ARIMAP < 1 {
			return nil, errors.New("arima: p must be at least 1")
		}
		return NewARIMA(s.ARIMAP), nil
	case VariantRandomForest:
		f := s.Forest
		return &RandomForest{Trees: f.Trees, MaxDepth: f.MaxDepth, MinLeaf: f.MinLeaf, FeatureFraction: f.FeatureFraction, Seed: f.Seed}, nil
	case VariantGradientBoosting:
		b := s.Boosting
		return &GradientBoosting{Rounds: b.Rounds, LearningRate: b.LearningRate, MaxDepth: b.MaxDepth, MinLeaf: b.MinLeaf, Patience: b.Patience}, nil
	case VariantMLP:
		p := s.MLP
		return &MLP{Hidden: p.Hidden, LearningRate: p.LearningRate, MaxEpochs: p.MaxEpochs, Tolerance: p.Tolerance, Patience: p.Patience, Seed: p.Seed}, nil
	}
	return nil, fmt.Errorf("unknown model variant %q", s.Variant)
}

// Trained is a fitted model together with the feature layout it was trained on.
type Trained struct {
	Spec        Spec
	Model       Model
	Lags        int
	Features    []string
	Diagnostics model.Diagnostics
	Rows        int
}

// Dataset builds the supervised dataset the spec's variant trains on.
func (s Spec) Dataset(series *model.PriceSeries, set *model.IndicatorSet) (*Dataset, error) {
	lags, features := s.Layout()
	return BuildDataset(series, set, lags, features)
}

// Train builds the dataset for spec and fits on all of it.
func Train(series *model.PriceSeries, set *model.IndicatorSet, spec Spec) (*Trained, *Dataset, error) {
	ds, err := spec.Dataset(series, set)
	if err != nil {
		return nil, nil, err
	}
	trained, err := Fit(ds, spec)
	return trained, ds, err
}

// Fit trains a new model of spec's variant on ds. It fails with model.ErrInsufficientData when ds
// has fewer rows than the model needs. On model.ErrConvergenceFailure the returned Trained still
// carries the diagnostics.
func Fit(ds *Dataset, spec Spec) (*Trained, error) {
	m, err := spec.NewModel()
	if err != nil {
		return nil, err
	}
	lags, features := spec.Layout()
	if need := m.MinSamples(len(ds.Columns)); ds.Len() < need {
		return nil, fmt.Errorf("%s needs %d rows, have %d (%d dropped for missing features): %w",
			m.Name(), need, ds.Len(), ds.Dropped, model.ErrInsufficientData)
	}

	diag, err := m.Fit(ds.X, ds.Y)
	trained := &Trained{Spec: spec, Model: m, Lags: lags, Features: features, Diagnostics: diag, Rows: ds.Len()}
	if err != nil {
		return trained, fmt.Errorf("fit %s: %w", m.Name(), err)
	}
	return trained, nil
}

// Name is the fitted model's name.
func (t *Trained) Name() string { return t.Model.Name() }

// Predict returns predicted close levels for each dataset row.
func (t *Trained) Predict(ds *Dataset) ([]float64, error) {
	deltas, err := t.Model.Predict(ds.X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(deltas))
	for i, d := range deltas {
		out[i] = ds.Base[i] + d
	}
	return out, nil
}

// PredictNext predicts the close of the bar after the last bar of series.
func (t *Trained) PredictNext(series *model.PriceSeries, set *model.IndicatorSet) (float64, error) {
	closes := series.Closes()
	last := len(closes) - 1
	if last < 0 {
		return 0, fmt.Errorf("empty series: %w", model.ErrInsufficientData)
	}
	row, ok := featureRow(closes, set, last, t.Lags, t.Features)
	if !ok {
		return 0, fmt.Errorf("features missing at the last bar of %s: %w", series.Symbol(), model.ErrInsufficientData)
	}
	deltas, err := t.Model.Predict([][]float64{row})
	if err != nil {
		return 0, err
	}
	return closes[last] + deltas[0], nil
}

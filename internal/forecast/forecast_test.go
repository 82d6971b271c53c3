package forecast

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"StockCast/internal/collector"
	"StockCast/internal/indicator"
	"StockCast/internal/model"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func linearFixture(t *testing.T, n int) (*model.PriceSeries, *indicator.Builder, *model.IndicatorSet) {
	t.Helper()
	series, err := model.NewPriceSeries("LIN", collector.LinearBars(start, n, 100, 1))
	if err != nil {
		t.Fatal(err)
	}
	b, err := indicator.NewBuilder([]string{"SMA_5"})
	if err != nil {
		t.Fatal(err)
	}
	set, err := b.Build(series)
	if err != nil {
		t.Fatal(err)
	}
	return series, b, set
}

func fastSpec(v Variant) Spec {
	s := DefaultSpec(v)
	s.Lags = 3
	s.ARIMAP = 3
	s.Features = []string{"SMA_5"}
	s.Forest.Trees = 15
	s.Boosting.Rounds = 30
	s.MLP.MaxEpochs = 3000
	return s
}

func TestIncreasingSeriesPredictsAboveLastClose(t *testing.T) {
	series, _, set := linearFixture(t, 200)
	last := series.Last().Close

	for _, v := range Variants() {
		t.Run(string(v), func(t *testing.T) {
			trained, _, err := Train(series, set, fastSpec(v))
			if err != nil {
				t.Fatalf("Train: %v", err)
			}
			next, err := trained.PredictNext(series, set)
			if err != nil {
				t.Fatalf("PredictNext: %v", err)
			}
			if next <= last {
				t.Errorf("%s predicted %v, want above last close %v", v, next, last)
			}
		})
	}
}

func TestInsufficientData(t *testing.T) {
	series, _, set := linearFixture(t, 12)
	for _, v := range Variants() {
		t.Run(string(v), func(t *testing.T) {
			_, _, err := Train(series, set, fastSpec(v))
			if !errors.Is(err, model.ErrInsufficientData) {
				t.Errorf("err = %v, want ErrInsufficientData", err)
			}
		})
	}
}

func TestMLPConvergenceFailure(t *testing.T) {
	fetcher := &collector.MockFetcher{Price: 100, Step: 0.2, Wave: 5}
	bars, _ := fetcher.FetchBars(context.Background(), "W", start, start.AddDate(1, 0, 0))
	series, err := model.NewPriceSeries("W", bars)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := indicator.NewBuilder([]string{"SMA_5"})
	set, _ := b.Build(series)

	spec := fastSpec(VariantMLP)
	spec.MLP.MaxEpochs = 2
	spec.MLP.Tolerance = 1e-12
	spec.MLP.Patience = 50

	trained, _, err := Train(series, set, spec)
	if !errors.Is(err, model.ErrConvergenceFailure) {
		t.Fatalf("err = %v, want ErrConvergenceFailure", err)
	}
	if trained == nil {
		t.Fatal("diagnostics should be returned with the failure")
	}
	d := trained.Diagnostics
	if d.Converged || d.Iterations != 2 || len(d.Loss) != 2 {
		t.Errorf("diagnostics = %+v", d)
	}
}

func randomWalk(t *testing.T, seed int64, n int, sigma float64) *model.PriceSeries {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	days := collector.BusinessDays(start, start.AddDate(5, 0, 0))[:n]
	bars := make([]model.OHLCV, n)
	price := 100.0
	for i, d := range days {
		open := price
		price *= math.Exp(sigma * rng.NormFloat64())
		bars[i] = model.OHLCV{
			Time: d, Open: open, Close: price,
			High: math.Max(open, price) * 1.005, Low: math.Min(open, price) * 0.995,
			Volume: 1000,
		}
	}
	series, err := model.NewPriceSeries("RW", bars)
	if err != nil {
		t.Fatal(err)
	}
	return series
}

func TestMLPDefaultsConvergeOnNoisySeries(t *testing.T) {
	b, err := indicator.NewBuilder([]string{"SMA_20", "RSI_14", "MACD"})
	if err != nil {
		t.Fatal(err)
	}
	spec := DefaultSpec(VariantMLP)
	spec.Features = []string{"SMA_20", "RSI_14", "MACD_HIST"}

	for seed := int64(1); seed <= 5; seed++ {
		series := randomWalk(t, seed, 750, 0.015)
		set, err := b.Build(series)
		if err != nil {
			t.Fatal(err)
		}
		trained, _, err := Train(series, set, spec)
		if err != nil {
			t.Fatalf("seed %d: Train: %v", seed, err)
		}
		d := trained.Diagnostics
		if !d.Converged || d.Iterations > spec.MLP.MaxEpochs {
			t.Errorf("seed %d: diagnostics converged=%v iterations=%d", seed, d.Converged, d.Iterations)
		}
	}
}

func TestLinearRecoversCoefficients(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 50; i++ {
		x1 := float64(i)
		x2 := math.Sin(float64(i))
		X = append(X, []float64{x1, x2})
		y = append(y, 3+2*x1-x2)
	}
	m := NewLinear(0)
	diag, err := m.Fit(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if !diag.Converged || diag.FinalLoss() > 1e-6 {
		t.Errorf("diagnostics = %+v", diag)
	}
	pred, err := m.Predict([][]float64{{100, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pred[0]-203) > 1e-3 {
		t.Errorf("prediction = %v, want 203", pred[0])
	}
	if _, err := m.Predict([][]float64{{1}}); err == nil {
		t.Error("expected width error")
	}
}

func TestTreeLearnsStep(t *testing.T) {
	var X [][]float64
	var y []float64
	idx := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		X = append(X, []float64{float64(i)})
		v := 0.0
		if i >= 50 {
			v = 10
		}
		y = append(y, v)
		idx = append(idx, i)
	}
	root := growTree(X, y, idx, 0, treeConfig{maxDepth: 3, minLeaf: 1})
	if root.left == nil {
		t.Fatal("expected a split")
	}
	if root.threshold != 49.5 {
		t.Errorf("threshold = %v, want 49.5", root.threshold)
	}
	if root.predict([]float64{10}) != 0 || root.predict([]float64{80}) != 10 {
		t.Error("step not learned")
	}
}

func TestBuildDataset(t *testing.T) {
	series, _, set := linearFixture(t, 30)
	ds, err := BuildDataset(series, set, 2, []string{"SMA_5"})
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 25 || ds.Dropped != 4 {
		t.Errorf("rows = %d dropped = %d, want 25 and 4", ds.Len(), ds.Dropped)
	}
	want := []string{"DIFF_1", "DIFF_2", "SMA_5"}
	for i, c := range want {
		if ds.Columns[i] != c {
			t.Errorf("column %d = %s, want %s", i, ds.Columns[i], c)
		}
	}
	for i, v := range ds.Y {
		if v != 1 {
			t.Fatalf("Y[%d] = %v, want 1", i, v)
		}
	}
	if !ds.Times[0].Equal(series.Bar(5).Time) {
		t.Errorf("first target time = %s, want bar 5", ds.Times[0])
	}
	if ds.Actual()[0] != series.Bar(5).Close {
		t.Errorf("Actual[0] = %v", ds.Actual()[0])
	}

	train, test := ds.Split(0.8)
	if train.Len() != 20 || test.Len() != 5 {
		t.Errorf("split = %d/%d, want 20/5", train.Len(), test.Len())
	}
	if !test.Times[0].After(train.Times[train.Len()-1]) {
		t.Error("split must be chronological")
	}

	if _, err := BuildDataset(series, set, 2, []string{"RSI_14"}); err == nil {
		t.Error("expected error for a feature that was not computed")
	}
}

func TestProject(t *testing.T) {
	series, builder, set := linearFixture(t, 120)
	trained, _, err := Train(series, set, fastSpec(VariantLinear))
	if err != nil {
		t.Fatal(err)
	}

	fc, err := Project(context.Background(), trained, series, builder, ProjectOptions{Days: 10, Confidence: 0.95, Sigma: 1})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(fc.Points) != 10 {
		t.Fatalf("points = %d, want 10", len(fc.Points))
	}
	last := series.Last()
	prevTime := last.Time
	for k, p := range fc.Points {
		if math.Abs(p.Value-(last.Close+float64(k+1))) > 1e-6 {
			t.Errorf("point %d = %v, want %v", k, p.Value, last.Close+float64(k+1))
		}
		if !p.Time.After(prevTime) {
			t.Errorf("point %d time %s not after %s", k, p.Time, prevTime)
		}
		if wd := p.Time.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("point %d falls on %s", k, wd)
		}
		if !(p.Lower < p.Value && p.Value < p.Upper) {
			t.Errorf("point %d band %v..%v does not contain %v", k, p.Lower, p.Upper, p.Value)
		}
		prevTime = p.Time
	}
	z := 1.959963984540054
	if w := fc.Points[0].Upper - fc.Points[0].Lower; math.Abs(w-2*z) > 1e-6 {
		t.Errorf("band width at k=1 = %v, want %v", w, 2*z)
	}
	if w := fc.Points[3].Upper - fc.Points[3].Lower; math.Abs(w-4*z) > 1e-6 {
		t.Errorf("band width at k=4 = %v, want %v", w, 4*z)
	}
	if final, ok := fc.Final(); !ok || final.Time != fc.Points[9].Time {
		t.Error("Final should return the last point")
	}

	if _, err := Project(context.Background(), trained, series, builder, ProjectOptions{Days: 0, Confidence: 0.95}); err == nil {
		t.Error("expected error for zero days")
	}
}

func TestParseVariant(t *testing.T) {
	if v, err := ParseVariant(" Random_Forest "); err != nil || v != VariantRandomForest {
		t.Errorf("ParseVariant = %v, %v", v, err)
	}
	if _, err := ParseVariant("lstm"); err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestNextBusinessDay(t *testing.T) {
	friday := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := NextBusinessDay(friday); got.Weekday() != time.Monday || got.Day() != 8 {
		t.Errorf("NextBusinessDay(friday) = %s", got)
	}
}

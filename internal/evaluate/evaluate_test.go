package evaluate

import (
	"errors"
	"math"
	"testing"
	"time"

	"StockCast/internal/collector"
	"StockCast/internal/forecast"
	"StockCast/internal/indicator"
	"StockCast/internal/model"
)

func TestMetrics(t *testing.T) {
	actual := []float64{100, 102, 104, 106}
	predicted := []float64{101, 101, 105, 109}

	rmse, _ := RMSE(actual, predicted)
	mae, _ := MAE(actual, predicted)
	mape, _ := MAPE(actual, predicted)

	if want := math.Sqrt((1 + 1 + 1 + 9) / 4.0); math.Abs(rmse-want) > 1e-12 {
		t.Errorf("RMSE = %v, want %v", rmse, want)
	}
	if mae != 1.5 {
		t.Errorf("MAE = %v, want 1.5", mae)
	}
	want := 100 * (1.0/100 + 1.0/102 + 1.0/104 + 3.0/106) / 4
	if math.Abs(mape-want) > 1e-12 {
		t.Errorf("MAPE = %v, want %v", mape, want)
	}
}

func TestRMSEAtLeastMAE(t *testing.T) {
	cases := [][2][]float64{
		{{1, 2, 3}, {1, 2, 3}},
		{{1, 2, 3}, {2, 3, 4}},
		{{0, 0, 0, 0}, {5, -1, 0.5, 3}},
		{{10, -10}, {-10, 10}},
		{{}, {}},
	}
	for i, c := range cases {
		rmse, err := RMSE(c[0], c[1])
		if err != nil {
			t.Fatal(err)
		}
		mae, _ := MAE(c[0], c[1])
		if rmse < 0 || mae < 0 {
			t.Errorf("case %d: negative metric rmse=%v mae=%v", i, rmse, mae)
		}
		if rmse < mae-1e-12 {
			t.Errorf("case %d: RMSE %v < MAE %v", i, rmse, mae)
		}
	}
}

func TestMetricEdgeCases(t *testing.T) {
	if _, err := RMSE([]float64{1}, nil); err == nil {
		t.Error("expected length error")
	}
	if v, _ := MAPE([]float64{0, 0}, []float64{1, 2}); !math.IsNaN(v) {
		t.Errorf("MAPE with zero actuals = %v, want NaN", v)
	}
	if v, _ := MAPE([]float64{0, 10}, []float64{1, 11}); v != 10 {
		t.Errorf("MAPE should skip zero actuals, got %v", v)
	}
	if v, _ := R2([]float64{1, 2, 3}, []float64{1, 2, 3}); v != 1 {
		t.Errorf("perfect R2 = %v", v)
	}
}

func TestEvaluate(t *testing.T) {
	bars := collector.LinearBars(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100, 50, 0.5)
	series, _ := model.NewPriceSeries("E", bars)
	b, _ := indicator.NewBuilder([]string{"SMA_5"})
	set, _ := b.Build(series)

	spec := forecast.DefaultSpec(forecast.VariantLinear)
	spec.Features = []string{"SMA_5"}
	ds, err := spec.Dataset(series, set)
	if err != nil {
		t.Fatal(err)
	}
	train, test := ds.Split(0.8)
	trained, err := forecast.Fit(train, spec)
	if err != nil {
		t.Fatal(err)
	}

	res, pred, err := Evaluate(trained, test)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.TestRows != test.Len() || len(pred) != test.Len() || res.TrainRows != train.Len() {
		t.Errorf("rows = %d/%d, preds %d", res.TrainRows, res.TestRows, len(pred))
	}
	for _, name := range []string{model.MetricRMSE, model.MetricMAE, model.MetricMAPE, model.MetricR2} {
		if _, ok := res.Metrics[name]; !ok {
			t.Errorf("missing metric %s", name)
		}
	}
	if res.Metrics[model.MetricRMSE] > 1e-6 {
		t.Errorf("RMSE on a noiseless trend = %v", res.Metrics[model.MetricRMSE])
	}

	_, empty := ds.Split(1)
	if _, _, err := Evaluate(trained, empty); !errors.Is(err, model.ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

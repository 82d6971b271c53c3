package evaluate

import (
	"fmt"

	"StockCast/internal/forecast"
	"StockCast/internal/model"
)

// Evaluate scores trained on the held-out rows of test.
func Evaluate(trained *forecast.Trained, test *forecast.Dataset) (*model.EvaluationResult, []float64, error) {
	if test.Len() == 0 {
		return nil, nil, fmt.Errorf("no held-out rows to evaluate %s: %w", trained.Name(), model.ErrInsufficientData)
	}
	predicted, err := trained.Predict(test)
	if err != nil {
		return nil, nil, fmt.Errorf("predict held-out rows: %w", err)
	}
	metrics, err := Score(test.Actual(), predicted)
	if err != nil {
		return nil, nil, err
	}
	return &model.EvaluationResult{
		Model:     trained.Name(),
		Metrics:   metrics,
		TrainRows: trained.Rows,
		TestRows:  test.Len(),
	}, predicted, nil
}

// Score computes every metric for one prediction set.
func Score(actual, predicted []float64) (map[string]float64, error) {
	out := make(map[string]float64, 4)
	for _, m := range []struct {
		name string
		fn   func(a, p []float64) (float64, error)
	}{
		{model.MetricRMSE, RMSE},
		{model.MetricMAE, MAE},
		{model.MetricMAPE, MAPE},
		{model.MetricR2, R2},
	} {
		v, err := m.fn(actual, predicted)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
		out[m.name] = v
	}
	return out, nil
}

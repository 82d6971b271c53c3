package model

import "time"

// Diagnostics describes how a model fit went.
type Diagnostics struct {
	Loss       []float64 `json:"loss,omitempty"`
	Converged  bool      `json:"converged"`
	Iterations int       `json:"iterations"`
}

// FinalLoss returns the last recorded training loss, or 0.
func (d Diagnostics) FinalLoss() float64 {
	if len(d.Loss) == 0 {
		return 0
	}
	return d.Loss[len(d.Loss)-1]
}

// Metric names used in EvaluationResult.
const (
	MetricRMSE = "RMSE"
	MetricMAE  = "MAE"
	MetricMAPE = "MAPE"
	MetricR2   = "R2"
)

// EvaluationResult holds error metrics of one trained model on held-out data.
type EvaluationResult struct {
	Model     string             `json:"model"`
	Metrics   map[string]float64 `json:"metrics"`
	TrainRows int                `json:"train_rows"`
	TestRows  int                `json:"test_rows"`
}

// ForecastPoint is one projected bar with its confidence band.
type ForecastPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// Forecast is a multi-step projection beyond the last observed bar.
type Forecast struct {
	Symbol     string          `json:"symbol"`
	Model      string          `json:"model"`
	Confidence float64         `json:"confidence"`
	LastClose  float64         `json:"last_close"`
	Points     []ForecastPoint `json:"points"`
}

// Final returns the last projected point.
func (f *Forecast) Final() (ForecastPoint, bool) {
	if f == nil || len(f.Points) == 0 {
		return ForecastPoint{}, false
	}
	return f.Points[len(f.Points)-1], true
}

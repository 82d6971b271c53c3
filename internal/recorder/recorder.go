package recorder

import (
	"context"
	"time"

	"StockCast/internal/model"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID            int64              `json:"id"`
	StartedAt     time.Time          `json:"started_at"`
	Symbol        string             `json:"symbol"`
	Model         string             `json:"model"`
	Source        string             `json:"source"`
	Status        string             `json:"status"`
	Error         string             `json:"error,omitempty"`
	Bars          int                `json:"bars"`
	TrainRows     int                `json:"train_rows"`
	TestRows      int                `json:"test_rows"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	ForecastDays  int                `json:"forecast_days"`
	LastClose     float64            `json:"last_close"`
	FinalForecast float64            `json:"final_forecast"`
	OutlookScore  float64            `json:"outlook_score"`
	Stance        string             `json:"stance,omitempty"`
	Duration      time.Duration      `json:"duration"`
}

// Recorder persists loaded series and run summaries for later replay and review.
type Recorder interface {
	SaveSeries(ctx context.Context, series *model.PriceSeries) error
	RecordRun(ctx context.Context, run *RunRecord) (int64, error)
	// RecentRuns lists the newest runs first; an empty symbol matches all.
	RecentRuns(ctx context.Context, symbol string, limit int) ([]RunRecord, error)
	Close() error
}

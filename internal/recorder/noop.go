package recorder

import (
	"context"

	"StockCast/internal/model"
)

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) SaveSeries(context.Context, *model.PriceSeries) error { return nil }
func (n *NoopRecorder) RecordRun(context.Context, *RunRecord) (int64, error) { return 0, nil }
func (n *NoopRecorder) RecentRuns(context.Context, string, int) ([]RunRecord, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }

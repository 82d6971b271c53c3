package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"StockCast/internal/collector"
	"StockCast/internal/model"
	"StockCast/internal/pipeline"
)

type stubRunner struct {
	calls []string
}

func (r *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	r.calls = append(r.calls, req.Symbol)
	if req.Symbol == "BAD" {
		return nil, model.ErrDataUnavailable
	}
	series, err := model.NewPriceSeries(req.Symbol, collector.LinearBars(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 5, 10, 1))
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{Series: series}, nil
}

func (r *stubRunner) Prepare(context.Context, string, time.Time, time.Time) (*pipeline.Result, error) {
	return nil, nil
}

type captureNotifier struct{ msgs []string }

func (c *captureNotifier) Notify(_ context.Context, text string) error {
	c.msgs = append(c.msgs, text)
	return nil
}

func TestRefreshNow(t *testing.T) {
	runner := &stubRunner{}
	note := &captureNotifier{}
	s := NewScheduler(context.Background(), runner, note, []string{"AAPL", "BAD", "TM"}, nil)

	sum := s.RefreshNow()
	if sum.OK != 2 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if strings.Join(runner.calls, ",") != "AAPL,BAD,TM" {
		t.Errorf("calls = %v", runner.calls)
	}
	if len(note.msgs) != 1 {
		t.Fatalf("notifications = %d, want 1 digest", len(note.msgs))
	}
	for _, want := range []string{"2 forecast(s), 1 failure(s)", "<b>AAPL</b> 14.00", "<b>BAD</b>: data unavailable"} {
		if !strings.Contains(note.msgs[0], want) {
			t.Errorf("digest missing %q:\n%s", want, note.msgs[0])
		}
	}
}

func TestRefreshStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &stubRunner{}
	s := NewScheduler(ctx, runner, &captureNotifier{}, []string{"AAPL", "TM"}, nil)
	s.RefreshNow()
	if len(runner.calls) != 0 {
		t.Errorf("runs after cancel: %v", runner.calls)
	}
}

func TestRegister(t *testing.T) {
	s := NewScheduler(context.Background(), &stubRunner{}, nil, nil, nil)
	if err := s.Register("0 0 22 * * 1-5"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(s.Cron.Entries()) != 1 {
		t.Errorf("entries = %d", len(s.Cron.Entries()))
	}
	if err := s.Register("not a cron"); err == nil {
		t.Error("expected error for invalid spec")
	}
}

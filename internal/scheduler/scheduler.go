package scheduler

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/robfig/cron/v3"

	"StockCast/internal/logger"
	"StockCast/internal/notifier"
	"StockCast/internal/pipeline"
)

// Scheduler refreshes forecasts for the watchlist on a cron schedule.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   notifier.Runner
	Notifier notifier.Notifier
	Assets   []string
	Log      *logger.Logger
	Ctx      context.Context

	now func() time.Time
}

// NewScheduler creates a new Scheduler. Cron specs carry a leading seconds field.
func NewScheduler(ctx context.Context, runner notifier.Runner, n notifier.Notifier, assets []string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	if n == nil {
		n = notifier.NoopNotifier{Log: log}
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Notifier: n,
		Assets:   assets,
		Log:      log,
		Ctx:      ctx,
		now:      time.Now,
	}
}

// Register adds the watchlist refresh at refreshCron.
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, func() { s.RefreshNow() }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started", logger.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

// Summary counts the outcome of one refresh.
type Summary struct {
	OK     int
	Failed int
}

// RefreshNow runs the pipeline for every asset, which also warms the series
// cache and records each run, then sends one digest.
func (s *Scheduler) RefreshNow() Summary {
	start := s.now()
	s.Log.Info("running watchlist refresh", logger.Int("assets", len(s.Assets)))

	var sum Summary
	var lines []string
	for _, symbol := range s.Assets {
		if s.Ctx.Err() != nil {
			break
		}
		res, err := s.Runner.Run(s.Ctx, pipeline.Request{Symbol: symbol})
		if err != nil {
			sum.Failed++
			s.Log.Error("refresh failed", logger.String("symbol", symbol), logger.Error(err))
			lines = append(lines, notifier.FormatFailure(symbol, err))
			continue
		}
		sum.OK++
		line := notifier.FormatLine(res)
		if res.Outlook != nil && res.Outlook.Warning != "" {
			line += "\n  " + html.EscapeString(res.Outlook.Warning)
		}
		lines = append(lines, line)
	}

	if err := s.Notifier.Notify(s.Ctx, notifier.FormatRefresh(start, sum.OK, sum.Failed, lines)); err != nil {
		s.Log.Error("send notification", logger.Error(err))
	}
	s.Log.Info("watchlist refresh done",
		logger.Int("ok", sum.OK),
		logger.Int("failed", sum.Failed),
		logger.Duration("elapsed", s.now().Sub(start)))
	return sum
}

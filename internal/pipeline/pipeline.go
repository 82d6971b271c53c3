// Package pipeline runs one forecast end to end: load, indicators, training,
// evaluation, projection and the technical outlook.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockCast/internal/config"
	"StockCast/internal/evaluate"
	"StockCast/internal/forecast"
	"StockCast/internal/indicator"
	"StockCast/internal/logger"
	"StockCast/internal/metrics"
	"StockCast/internal/model"
	"StockCast/internal/outlook"
	"StockCast/internal/recorder"
)

// Stage names reported to metrics and kept in Result.Timings.
const (
	StageLoad       = "load"
	StageIndicators = "indicators"
	StageTrain      = "train"
	StageEvaluate   = "evaluate"
	StageProject    = "project"
	StageOutlook    = "outlook"
	StagePersist    = "persist"
)

// SeriesLoader is the data-loading stage.
type SeriesLoader interface {
	Load(ctx context.Context, symbol string, from, to time.Time) (*model.PriceSeries, error)
	Source() string
}

// Settings are the run parameters that do not change per request.
type Settings struct {
	Spec          forecast.Spec
	TrainFraction float64
	Days          int
	Confidence    float64
}

// SettingsFromConfig maps the model and forecast sections of cfg.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	v, err := forecast.ParseVariant(cfg.Model.Variant)
	if err != nil {
		return Settings{}, err
	}
	m := cfg.Model
	spec := forecast.Spec{
		Variant:  v,
		Lags:     m.Lags,
		Features: append([]string(nil), m.Features...),
		Ridge:    m.Ridge,
		ARIMAP:   m.ARIMA.P,
		Forest: forecast.ForestParams{
			Trees: m.Forest.Trees, MaxDepth: m.Forest.MaxDepth, MinLeaf: m.Forest.MinLeaf,
			FeatureFraction: m.Forest.FeatureFraction, Seed: m.Forest.Seed,
		},
		Boosting: forecast.BoostingParams{
			Rounds: m.Boosting.Rounds, LearningRate: m.Boosting.LearningRate, MaxDepth: m.Boosting.MaxDepth,
			MinLeaf: m.Boosting.MinLeaf, Patience: m.Boosting.Patience,
		},
		MLP: forecast.MLPParams{
			Hidden: m.MLP.Hidden, LearningRate: m.MLP.LearningRate, MaxEpochs: m.MLP.MaxEpochs,
			Tolerance: m.MLP.Tolerance, Patience: m.MLP.Patience, Seed: m.MLP.Seed,
		},
	}
	return Settings{
		Spec:          spec,
		TrainFraction: m.TrainFraction,
		Days:          cfg.Forecast.Days,
		Confidence:    cfg.Forecast.Confidence,
	}, nil
}

// Request selects what one run forecasts. Zero fields fall back to Settings.
type Request struct {
	Symbol  string
	From    time.Time
	To      time.Time
	Variant forecast.Variant
	Days    int
}

// Result holds the output of every stage that completed.
type Result struct {
	Source     string
	Series     *model.PriceSeries
	Indicators *model.IndicatorSet
	Dataset    *forecast.Dataset
	Trained    *forecast.Trained
	Evaluation *model.EvaluationResult
	Forecast   *model.Forecast
	Outlook    *model.Outlook
	Timings    map[string]time.Duration
}

// Pipeline wires the stages together. It is safe for concurrent use.
type Pipeline struct {
	loader   SeriesLoader
	builder  *indicator.Builder
	settings Settings
	recorder recorder.Recorder
	metrics  *metrics.Recorder
	log      *logger.Logger
	now      func() time.Time
}

type Option func(*Pipeline)

// WithRecorder persists series and run summaries. Recorder failures are logged, never returned.
func WithRecorder(r recorder.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(log *logger.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New checks that every model feature is produced by builder.
func New(loader SeriesLoader, builder *indicator.Builder, settings Settings, opts ...Option) (*Pipeline, error) {
	for _, f := range settings.Spec.Features {
		if !builder.Has(f) {
			return nil, fmt.Errorf("model feature %s is not produced by any configured indicator", f)
		}
	}
	if settings.TrainFraction <= 0 || settings.TrainFraction >= 1 {
		return nil, fmt.Errorf("train fraction %v must be in (0, 1)", settings.TrainFraction)
	}
	p := &Pipeline{
		loader:   loader,
		builder:  builder,
		settings: settings,
		recorder: recorder.NewNoopRecorder(),
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Settings returns the defaults requests fall back to.
func (p *Pipeline) Settings() Settings { return p.settings }

// Source names the data source behind the loader.
func (p *Pipeline) Source() string { return p.loader.Source() }

func (p *Pipeline) timed(res *Result, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	res.Timings[stage] = d
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, d)
	}
	return err
}

// Prepare runs the load and indicator stages only.
func (p *Pipeline) Prepare(ctx context.Context, symbol string, from, to time.Time) (*Result, error) {
	res := &Result{Source: p.loader.Source(), Timings: make(map[string]time.Duration)}
	err := p.prepare(ctx, res, symbol, from, to)
	if err != nil {
		p.countError(err)
	}
	return res, err
}

func (p *Pipeline) prepare(ctx context.Context, res *Result, symbol string, from, to time.Time) error {
	if err := p.timed(res, StageLoad, func() error {
		s, err := p.loader.Load(ctx, symbol, from, to)
		res.Series = s
		return err
	}); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.SetLastClose(symbol, res.Series.Last().Close)
	}
	return p.timed(res, StageIndicators, func() error {
		set, err := p.builder.Build(res.Series)
		res.Indicators = set
		return err
	})
}

// Run executes every stage once. On failure it returns the partial result with
// the error; the run is recorded either way.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	spec := p.settings.Spec
	if req.Variant != "" {
		spec.Variant = req.Variant
	}
	days := req.Days
	if days == 0 {
		days = p.settings.Days
	}

	started := p.now()
	res = &Result{Source: p.loader.Source(), Timings: make(map[string]time.Duration)}
	log := p.log.With(logger.String("symbol", req.Symbol), logger.String("variant", string(spec.Variant)))

	defer func() {
		p.finish(ctx, req, spec, days, started, res, err, log)
	}()

	if err = p.prepare(ctx, res, req.Symbol, req.From, req.To); err != nil {
		return res, err
	}

	var train, test *forecast.Dataset
	err = p.timed(res, StageTrain, func() error {
		ds, err := spec.Dataset(res.Series, res.Indicators)
		if err != nil {
			return err
		}
		res.Dataset = ds
		train, test = ds.Split(p.settings.TrainFraction)
		trained, err := forecast.Fit(train, spec)
		res.Trained = trained
		return err
	})
	if err != nil {
		return res, err
	}

	err = p.timed(res, StageEvaluate, func() error {
		eval, _, err := evaluate.Evaluate(res.Trained, test)
		res.Evaluation = eval
		return err
	})
	if err != nil {
		return res, err
	}

	err = p.timed(res, StageProject, func() error {
		// Refit on every row so the projection starts from the freshest data.
		full, err := forecast.Fit(res.Dataset, spec)
		if err != nil {
			return err
		}
		res.Trained = full
		fc, err := forecast.Project(ctx, full, res.Series, p.builder, forecast.ProjectOptions{
			Days:       days,
			Confidence: p.settings.Confidence,
			Sigma:      res.Evaluation.Metrics[model.MetricRMSE],
		})
		res.Forecast = fc
		return err
	})
	if err != nil {
		return res, err
	}

	_ = p.timed(res, StageOutlook, func() error {
		res.Outlook = outlook.Analyze(res.Series, log)
		return nil
	})

	log.Info("run complete",
		logger.Int("bars", res.Series.Len()),
		logger.Int("rows", res.Dataset.Len()),
		logger.Float("rmse", res.Evaluation.Metrics[model.MetricRMSE]),
		logger.Duration("elapsed", p.now().Sub(started)))
	return res, nil
}

// finish persists and counts a run, whatever its outcome.
func (p *Pipeline) finish(ctx context.Context, req Request, spec forecast.Spec, days int, started time.Time, res *Result, runErr error, log *logger.Logger) {
	name := string(spec.Variant)
	if res.Trained != nil {
		name = res.Trained.Name()
	}
	status := recorder.StatusOK
	if runErr != nil {
		status = recorder.StatusFailed
		p.countError(runErr)
		log.Warn("run failed", logger.Error(runErr))
	}
	if p.metrics != nil {
		p.metrics.RecordRun(string(spec.Variant), status)
	}

	_ = p.timed(res, StagePersist, func() error {
		if res.Series != nil && res.Source != "store" {
			if err := p.recorder.SaveSeries(ctx, res.Series); err != nil {
				log.Warn("save series failed", logger.Error(err))
			}
		}
		run := &recorder.RunRecord{
			StartedAt:    started,
			Symbol:       req.Symbol,
			Model:        name,
			Source:       res.Source,
			Status:       status,
			ForecastDays: days,
			Duration:     p.now().Sub(started),
		}
		if runErr != nil {
			run.Error = runErr.Error()
		}
		if res.Series != nil {
			run.Bars = res.Series.Len()
			run.LastClose = res.Series.Last().Close
		}
		if res.Evaluation != nil {
			run.TrainRows = res.Evaluation.TrainRows
			run.TestRows = res.Evaluation.TestRows
			run.Metrics = res.Evaluation.Metrics
		}
		if final, ok := res.Forecast.Final(); ok {
			run.FinalForecast = final.Value
			if p.metrics != nil && res.Evaluation != nil {
				p.metrics.SetForecast(req.Symbol, name, final.Value, res.Evaluation.Metrics[model.MetricRMSE])
			}
		}
		if res.Outlook != nil {
			run.OutlookScore = res.Outlook.TotalScore
			run.Stance = res.Outlook.Stance.Label
			if p.metrics != nil {
				p.metrics.SetOutlookScore(req.Symbol, res.Outlook.TotalScore)
			}
		}
		if _, err := p.recorder.RecordRun(ctx, run); err != nil {
			log.Warn("record run failed", logger.Error(err))
		}
		return nil
	})
}

func (p *Pipeline) countError(err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordError(ErrorKind(err))
}

// ErrorKind names the error class of err for metrics and API responses.
func ErrorKind(err error) string {
	if k := model.Kind(err); k != nil {
		return k.Error()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "internal"
}

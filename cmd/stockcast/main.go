package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"StockCast/internal/cache"
	"StockCast/internal/collector"
	"StockCast/internal/config"
	"StockCast/internal/dashboard"
	"StockCast/internal/indicator"
	"StockCast/internal/logger"
	"StockCast/internal/metrics"
	"StockCast/internal/notifier"
	"StockCast/internal/pipeline"
	"StockCast/internal/recorder"
	"StockCast/internal/render"
	"StockCast/internal/scheduler"
)

type flags struct {
	config string
	ticker string
	csv    string
	from   string
	to     string
	model  string
	days   int
	out    string
	serve  bool
}

func parseFlags() flags {
	var f flags
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	flag.StringVar(&f.config, "config", cfgPath, "path to the YAML config")
	flag.StringVar(&f.ticker, "ticker", "", "symbol to forecast (default: first configured asset)")
	flag.StringVar(&f.csv, "csv", "", "read bars from this CSV file or directory instead of the configured provider")
	flag.StringVar(&f.from, "from", "", "first date, YYYY-MM-DD (default: lookback years before -to)")
	flag.StringVar(&f.to, "to", "", "last date, YYYY-MM-DD (default: today)")
	flag.StringVar(&f.model, "model", "", "model variant: linear, arima, random_forest, gradient_boosting, mlp")
	flag.IntVar(&f.days, "days", 0, "forecast horizon in business days (7..90)")
	flag.StringVar(&f.out, "out", "", "directory for charts and the CSV export")
	flag.BoolVar(&f.serve, "serve", false, "serve the dashboard instead of a single run")
	flag.Parse()
	return f
}

// runFailure marks a batch run that started but failed, as opposed to a start-up error.
type runFailure struct{ err error }

func (r *runFailure) Error() string { return r.err.Error() }
func (r *runFailure) Unwrap() error { return r.err }

func main() {
	if err := run(parseFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var rf *runFailure
		if errors.As(err, &rf) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	from, err := parseDate(f.from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	to, err := parseDate(f.to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}
	symbol := f.ticker
	if symbol == "" {
		symbol = cfg.Assets[0]
	}

	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := openRecorder(ctx, cfg, log)
	defer func() {
		if err := rec.Close(); err != nil {
			log.Warn("close recorder", logger.Error(err))
		}
	}()

	fetcher, err := newFetcher(cfg, rec)
	if err != nil {
		return fmt.Errorf("init data source: %w", err)
	}
	log.Info("data source", logger.String("provider", fetcher.Name()))

	loaderOpts := []collector.LoaderOption{
		collector.WithLogger(log),
		collector.WithLookbackYears(cfg.DataSource.LookbackYears),
	}
	if c, closer := openCache(ctx, cfg, log); c != nil {
		loaderOpts = append(loaderOpts, collector.WithCache(c, cfg.Cache.TTL))
		defer closer()
	}

	builder, err := indicator.NewBuilder(cfg.Indicators)
	if err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	settings, err := pipeline.SettingsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("model settings: %w", err)
	}
	m := metrics.New()
	p, err := pipeline.New(collector.NewLoader(fetcher, loaderOpts...), builder, settings,
		pipeline.WithRecorder(rec),
		pipeline.WithMetrics(m),
		pipeline.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	if f.serve {
		if err := serve(ctx, cfg, p, rec, m, log); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	}

	req := pipeline.Request{Symbol: symbol, From: from, To: to}
	if err := runOnce(ctx, cfg, req, p, log); err != nil {
		return &runFailure{err: err}
	}
	return nil
}

func applyFlags(cfg *config.Config, f flags) {
	if f.csv != "" {
		cfg.DataSource.Provider = "csv"
		cfg.DataSource.CSVPath = f.csv
	}
	if f.model != "" {
		cfg.Model.Variant = strings.ToLower(f.model)
	}
	if f.days != 0 {
		cfg.Forecast.Days = f.days
	}
	if f.out != "" {
		cfg.OutputDir = f.out
	}
}

func openRecorder(ctx context.Context, cfg *config.Config, log *logger.Logger) recorder.Recorder {
	var (
		store *recorder.SQLStore
		err   error
	)
	switch cfg.Database.Driver {
	case "sqlite":
		store, err = recorder.NewSQLiteRecorder(ctx, cfg.Database.SQLitePath, log)
	case "postgres":
		store, err = recorder.NewPostgresRecorder(ctx, cfg.Database.PostgresDSN, log)
	default:
		return recorder.NewNoopRecorder()
	}
	if err != nil {
		log.Warn("init recorder failed, using noop", logger.String("driver", cfg.Database.Driver), logger.Error(err))
		return recorder.NewNoopRecorder()
	}
	return store
}

func newFetcher(cfg *config.Config, rec recorder.Recorder) (collector.Fetcher, error) {
	ds := cfg.DataSource
	switch ds.Provider {
	case "rest":
		if ds.BaseURL == "" {
			return nil, errors.New("rest provider needs data_source.base_url")
		}
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy, ds.Timeout), nil
	case "csv":
		return &collector.CSVFetcher{Path: ds.CSVPath}, nil
	case "store":
		store, ok := rec.(*recorder.SQLStore)
		if !ok {
			return nil, errors.New("store provider needs a working database")
		}
		return store, nil
	case "mock":
		return &collector.MockFetcher{Price: 100, Step: 0.1, Wave: 2}, nil
	default:
		y := collector.NewYahooFetcher(cfg.Proxy, ds.Timeout)
		if ds.BaseURL != "" {
			y.BaseURL = ds.BaseURL
		}
		y.Unadjusted = ds.Unadjusted
		return y, nil
	}
}

func openCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (cache.BytesCache, func()) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewTTLCache(), func() {}
	case "redis":
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr: cfg.Cache.Redis.Addr, Password: cfg.Cache.Redis.Password, DB: cfg.Cache.Redis.DB,
		})
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis unavailable, falling back to memory cache", logger.Error(err))
			rc.Close()
			return cache.NewTTLCache(), func() {}
		}
		return rc, func() { rc.Close() }
	}
	return nil, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func runOnce(ctx context.Context, cfg *config.Config, req pipeline.Request, p *pipeline.Pipeline, log *logger.Logger) error {
	symbol := req.Symbol
	res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}
	printSummary(res)

	paths, err := render.New().WriteFiles(cfg.OutputDir, render.Report{
		Series: res.Series, Indicators: res.Indicators, Forecast: res.Forecast,
	})
	if err != nil {
		return err
	}
	csvPath := filepath.Join(cfg.OutputDir, strings.ReplaceAll(symbol, "/", "_")+".csv")
	if err := collector.WriteCSVFile(csvPath, res.Series); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	for _, path := range append(paths, csvPath) {
		log.Info("wrote", logger.String("path", path))
	}
	return nil
}

func printSummary(res *pipeline.Result) {
	last := res.Series.Last()
	fmt.Printf("%s  %d bars from %s, last close %.2f on %s\n", res.Series.Symbol(), res.Series.Len(),
		res.Source, last.Close, last.Time.Format("2006-01-02"))

	ev := res.Evaluation
	fmt.Printf("model %s: trained on %d rows, tested on %d (%d dropped)\n",
		ev.Model, ev.TrainRows, ev.TestRows, res.Dataset.Dropped)
	names := make([]string, 0, len(ev.Metrics))
	for name := range ev.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-5s %.4f\n", name, ev.Metrics[name])
	}

	if final, ok := res.Forecast.Final(); ok {
		fmt.Printf("forecast %s: %.2f  [%.2f, %.2f] at %.0f%%\n", final.Time.Format("2006-01-02"),
			final.Value, final.Lower, final.Upper, res.Forecast.Confidence*100)
	}
	if o := res.Outlook; o != nil {
		fmt.Printf("outlook: %s (%+.3f)\n", o.Stance.Label, o.TotalScore)
		if o.Warning != "" {
			fmt.Println(o.Warning)
		}
	}
}

func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, rec recorder.Recorder, m *metrics.Recorder, log *logger.Logger) error {
	var note notifier.Notifier = notifier.NoopNotifier{Log: log}
	if cfg.TelegramEnabled() {
		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		note = tn
		cmds := &notifier.Commands{Runner: p, Assets: cfg.Assets, Log: log}
		go tn.StartPolling(ctx, cmds.Handle)
		log.Info("telegram polling started")
	}

	if cfg.Schedule.Enabled {
		sched := scheduler.NewScheduler(ctx, p, note, cfg.Assets, log)
		if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	h := dashboard.NewHandler(p, render.New(), rec, dashboard.HandlerConfig{
		Assets:       cfg.Assets,
		DefaultModel: cfg.Model.Variant,
		DefaultDays:  cfg.Forecast.Days,
	}, log)
	srv := dashboard.NewServer(h,
		dashboard.WithHost(cfg.Dashboard.Host),
		dashboard.WithPort(cfg.Dashboard.Port),
		dashboard.WithTimeouts(cfg.Dashboard.ReadTimeout, cfg.Dashboard.WriteTimeout, cfg.Dashboard.ShutdownTimeout),
		dashboard.WithMetrics(m),
		dashboard.WithLogger(log),
	)
	return srv.Run(ctx)
}

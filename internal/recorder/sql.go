package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"StockCast/internal/logger"
	"StockCast/internal/model"
)

var _ Recorder = (*SQLStore)(nil)

// dialect captures the differences between the supported databases.
type dialect struct {
	name       string
	migrations []string
	numbered   bool // $1, $2 placeholders instead of ?
}

// SQLStore persists series and runs through database/sql. It also replays stored
// series, which makes it usable as an offline data source.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	log     *logger.Logger
	mu      sync.Mutex
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, log *logger.Logger) (*SQLStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &SQLStore{db: db, dialect: d, log: log}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			head := stmt
			if len(head) > 40 {
				head = head[:40]
			}
			return fmt.Errorf("exec %q: %w", strings.TrimSpace(head), err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Name identifies the store when used as a data source.
func (s *SQLStore) Name() string { return "store" }

func (s *SQLStore) SaveSeries(ctx context.Context, series *model.PriceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO prices
		(symbol, ts, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (symbol, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range series.Bars() {
		if _, err := stmt.ExecContext(ctx, series.Symbol(), b.Time.UnixNano(),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("insert bar %s: %w", b.Time.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("series saved", logger.String("symbol", series.Symbol()), logger.Int("bars", series.Len()))
	return nil
}

// FetchBars returns stored bars for symbol in [from, to]; zero bounds are open.
func (s *SQLStore) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]model.OHLCV, error) {
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if !from.IsZero() {
		lo = from.UnixNano()
	}
	if !to.IsZero() {
		hi = to.UnixNano()
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT ts, open, high, low, close, volume
		FROM prices WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts`), symbol, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var bars []model.OHLCV
	for rows.Next() {
		var ts int64
		var b model.OHLCV
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, &model.RecordError{Row: len(bars), Err: err}
		}
		b.Time = time.Unix(0, ts).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LoadSeries reads a stored series. It fails with model.ErrDataUnavailable when nothing is stored.
func (s *SQLStore) LoadSeries(ctx context.Context, symbol string, from, to time.Time) (*model.PriceSeries, error) {
	bars, err := s.FetchBars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no stored bars for %s: %w", symbol, model.ErrDataUnavailable)
	}
	return model.NewPriceSeries(symbol, bars)
}

func nullable(m map[string]float64, key string) sql.NullFloat64 {
	v, ok := m[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func (s *SQLStore) RecordRun(ctx context.Context, run *RunRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO runs
		(started_at, symbol, model, source, status, error, bars, train_rows, test_rows,
		 rmse, mae, mape, r2, forecast_days, last_close, final_forecast,
		 outlook_score, stance, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		RETURNING id`),
		started.UnixNano(), run.Symbol, run.Model, run.Source, run.Status, run.Error,
		run.Bars, run.TrainRows, run.TestRows,
		nullable(run.Metrics, model.MetricRMSE), nullable(run.Metrics, model.MetricMAE),
		nullable(run.Metrics, model.MetricMAPE), nullable(run.Metrics, model.MetricR2),
		run.ForecastDays, run.LastClose, run.FinalForecast,
		run.OutlookScore, run.Stance, run.Duration.Milliseconds(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	run.ID = id
	return id, nil
}

func (s *SQLStore) RecentRuns(ctx context.Context, symbol string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, started_at, symbol, model, source, status, error,
		bars, train_rows, test_rows, rmse, mae, mape, r2, forecast_days, last_close, final_forecast,
		outlook_score, stance, duration_ms
		FROM runs WHERE (? = '' OR symbol = ?) ORDER BY started_at DESC, id DESC LIMIT ?`),
		symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, durationMS int64
		var rmse, mae, mape, r2 sql.NullFloat64
		if err := rows.Scan(&r.ID, &started, &r.Symbol, &r.Model, &r.Source, &r.Status, &r.Error,
			&r.Bars, &r.TrainRows, &r.TestRows, &rmse, &mae, &mape, &r2,
			&r.ForecastDays, &r.LastClose, &r.FinalForecast,
			&r.OutlookScore, &r.Stance, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Metrics = make(map[string]float64)
		for name, v := range map[string]sql.NullFloat64{
			model.MetricRMSE: rmse, model.MetricMAE: mae, model.MetricMAPE: mape, model.MetricR2: r2,
		} {
			if v.Valid {
				r.Metrics[name] = v.Float64
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	s.log.Info("closing recorder", logger.String("driver", s.dialect.name))
	return s.db.Close()
}

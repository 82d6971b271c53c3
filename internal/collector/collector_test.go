package collector

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"StockCast/internal/cache"
	"StockCast/internal/model"
)

var (
	rangeFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeTo   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

const yahooPayload = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","gmtoffset":-18000},
  "timestamp":[1704205800,1704292200,1704378600],
  "indicators":{
    "quote":[{"open":[187.15,null,182.15],"high":[188.44,null,183.09],"low":[183.89,null,180.88],
              "close":[185.64,null,181.91],"volume":[82488700,null,71983600]}],
    "adjclose":[{"adjclose":[92.82,null,90.955]}]
  }}],"error":null}}`

func TestYahooFetcher(t *testing.T) {
	var gotPath, gotPeriod1 string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPeriod1 = r.URL.Query().Get("period1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(yahooPayload))
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second)
	f.BaseURL = srv.URL

	bars, err := f.FetchBars(context.Background(), "AAPL", rangeFrom, rangeTo)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if gotPath != "/v8/finance/chart/AAPL" {
		t.Errorf("path = %s", gotPath)
	}
	if gotPeriod1 != "1704067200" {
		t.Errorf("period1 = %s", gotPeriod1)
	}
	if len(bars) != 2 {
		t.Fatalf("expected null bar to be skipped, got %d bars", len(bars))
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !bars[0].Time.Equal(want) {
		t.Errorf("bar time = %s, want %s", bars[0].Time, want)
	}
	if bars[0].Close != 92.82 {
		t.Errorf("adjusted close = %v, want 92.82", bars[0].Close)
	}
	if math.Abs(bars[0].Open-187.15*92.82/185.64) > 1e-9 {
		t.Errorf("adjusted open = %v", bars[0].Open)
	}

	f.Unadjusted = true
	raw, err := f.FetchBars(context.Background(), "AAPL", rangeFrom, rangeTo)
	if err != nil {
		t.Fatal(err)
	}
	if raw[0].Close != 185.64 {
		t.Errorf("raw close = %v, want 185.64", raw[0].Close)
	}
}

func TestYahooFetcherErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unknown symbol", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, model.ErrDataUnavailable},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, model.ErrDataUnavailable},
		{"garbage", http.StatusOK, `{"chart":`, model.ErrMalformedRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			f := NewYahooFetcher("", time.Second)
			f.BaseURL = srv.URL
			_, err := f.FetchBars(context.Background(), "NOPE", rangeFrom, rangeTo)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRESTFetcher(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Query().Get("symbol") != "MSFT" {
			http.Error(w, "bad symbol", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[{"timestamp":1704153600,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10}]`))
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "", time.Second)
	bars, err := f.FetchBars(context.Background(), "MSFT", rangeFrom, rangeTo)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if len(bars) != 1 || bars[0].Close != 1.5 {
		t.Errorf("bars = %+v", bars)
	}

	if _, err := f.FetchBars(context.Background(), "OTHER", rangeFrom, rangeTo); !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	bars := []model.OHLCV{
		{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Open: 0.1 + 0.2, High: 1e-7, Low: 1.0 / 3.0, Close: 123456.789012345, Volume: 0},
		{Time: time.Date(2024, 3, 4, 14, 30, 0, 123456789, time.UTC), Open: 99.99, High: 101.25, Low: 98.5, Close: 100.125, Volume: 12345678901},
		{Time: time.Date(2024, 3, 5, 9, 0, 0, 0, time.FixedZone("IST", 19800)), Open: 1, High: 2, Low: 0.5, Close: 1.75, Volume: 3},
	}
	series, err := model.NewPriceSeries("RT", bars)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, series); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got) != len(bars) {
		t.Fatalf("got %d bars, want %d", len(got), len(bars))
	}
	for i, want := range series.Bars() {
		g := got[i]
		if !g.Time.Equal(want.Time) || g.Open != want.Open || g.High != want.High ||
			g.Low != want.Low || g.Close != want.Close || g.Volume != want.Volume {
			t.Errorf("row %d: got %+v, want %+v", i, g, want)
		}
	}
}

func TestReadCSV(t *testing.T) {
	in := "Date,Open,High,Low,Close,Adj Close,Volume\n" +
		"2024-01-02,10,11,9,10.5,10.4,100\n" +
		"2024-01-03,,,,,,\n" +
		"2024-01-04,10.5,12,10,11.5,11.4,200\n"
	bars, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected empty row to be skipped, got %d bars", len(bars))
	}
	if bars[1].Close != 11.5 || bars[1].Volume != 200 {
		t.Errorf("bar = %+v", bars[1])
	}
}

func TestReadCSVMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		row  int
	}{
		{"bad close", "date,close\n2024-01-02,1\n2024-01-03,abc\n", 3},
		{"bad date", "date,close\nyesterday,1\n", 2},
		{"no close column", "date,price\n2024-01-02,1\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			var rec *model.RecordError
			if !errors.As(err, &rec) {
				t.Fatalf("err = %v, want RecordError", err)
			}
			if rec.Row != tt.row {
				t.Errorf("row = %d, want %d", rec.Row, tt.row)
			}
			if !errors.Is(err, model.ErrMalformedRecord) {
				t.Error("RecordError should unwrap to ErrMalformedRecord")
			}
		})
	}
}

func TestCSVFetcherDirectory(t *testing.T) {
	dir := t.TempDir()
	series, _ := model.NewPriceSeries("ABC", LinearBars(rangeFrom, 5, 10, 1))
	if err := WriteCSVFile(filepath.Join(dir, "ABC.csv"), series); err != nil {
		t.Fatal(err)
	}
	f := &CSVFetcher{Path: dir}
	bars, err := f.FetchBars(context.Background(), "ABC", time.Time{}, time.Time{})
	if err != nil || len(bars) != 5 {
		t.Fatalf("FetchBars = %d bars, %v", len(bars), err)
	}
	if _, err := f.FetchBars(context.Background(), "MISSING", time.Time{}, time.Time{}); !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("missing file err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ABC.csv")); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderCleans(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }
	raw := []model.OHLCV{
		{Time: day(6), Open: 11, High: 12, Low: 10, Close: 11, Volume: 5},
		{Time: day(5), Close: 10},
		{Time: day(6), Open: 11, High: 13, Low: 10, Close: 12.5, Volume: 6},
		{Time: time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC), Close: 9},
	}
	l := NewLoader(&MockFetcher{Bars: raw})
	series, err := l.Load(context.Background(), "X", rangeFrom, rangeTo)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (duplicate merged, out-of-range clipped)", series.Len())
	}
	if series.Bar(0).Open != 10 || series.Bar(0).High != 10 || series.Bar(0).Low != 10 {
		t.Errorf("missing OHLC should be filled from close: %+v", series.Bar(0))
	}
	if series.Last().Close != 12.5 {
		t.Errorf("duplicate should keep last occurrence, close = %v", series.Last().Close)
	}
}

func TestLoaderErrors(t *testing.T) {
	day := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		fetcher Fetcher
		want    error
	}{
		{"empty", &MockFetcher{Bars: []model.OHLCV{}}, model.ErrDataUnavailable},
		{"fetch failure", &MockFetcher{Err: errors.New("connection refused")}, model.ErrDataUnavailable},
		{"negative close", &MockFetcher{Bars: []model.OHLCV{{Time: day, Close: -1}}}, model.ErrMalformedRecord},
		{"high below low", &MockFetcher{Bars: []model.OHLCV{{Time: day, Open: 5, High: 4, Low: 6, Close: 5}}}, model.ErrMalformedRecord},
		{"nan", &MockFetcher{Bars: []model.OHLCV{{Time: day, Close: math.NaN()}}}, model.ErrMalformedRecord},
		{"negative volume", &MockFetcher{Bars: []model.OHLCV{{Time: day, Close: 1, Volume: -1}}}, model.ErrMalformedRecord},
		{"close above high", &MockFetcher{Bars: []model.OHLCV{{Time: day, Open: 5, High: 6, Low: 4, Close: 7}}}, model.ErrMalformedRecord},
		{"close below low", &MockFetcher{Bars: []model.OHLCV{{Time: day, Open: 5, High: 6, Low: 4, Close: 3}}}, model.ErrMalformedRecord},
		{"negative open", &MockFetcher{Bars: []model.OHLCV{{Time: day, Open: -5, High: 6, Low: 4, Close: 5}}}, model.ErrMalformedRecord},
		{"negative low", &MockFetcher{Bars: []model.OHLCV{{Time: day, Open: 5, High: 6, Low: -4, Close: 5}}}, model.ErrMalformedRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.fetcher).Load(context.Background(), "X", rangeFrom, rangeTo)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCleanReportsOffendingField(t *testing.T) {
	day := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	raw := []model.OHLCV{
		{Time: day, Open: 5, High: 6, Low: 4, Close: 5},
		{Time: day.AddDate(0, 0, 1), Open: 5, High: 6, Low: 4, Close: 6.5},
	}
	_, _, err := Clean("X", raw, rangeFrom, rangeTo)
	var rec *model.RecordError
	if !errors.As(err, &rec) {
		t.Fatalf("err = %v, want RecordError", err)
	}
	if rec.Row != 1 || rec.Field != "close" {
		t.Errorf("RecordError row=%d field=%q, want row 1 field close", rec.Row, rec.Field)
	}

	// rounding from adjusted prices stays within the bar
	scaled := []model.OHLCV{{Time: day, Open: 5, High: 6, Low: 4, Close: 6 * (1 + 1e-12)}}
	if _, _, err := Clean("X", scaled, rangeFrom, rangeTo); err != nil {
		t.Errorf("Clean rejected a close within rounding of high: %v", err)
	}
}

type countingFetcher struct {
	MockFetcher
	calls int
}

func (c *countingFetcher) FetchBars(ctx context.Context, s string, from, to time.Time) ([]model.OHLCV, error) {
	c.calls++
	return c.MockFetcher.FetchBars(ctx, s, from, to)
}

func TestLoaderCache(t *testing.T) {
	f := &countingFetcher{MockFetcher: MockFetcher{Price: 50, Step: 0.5}}
	l := NewLoader(f, WithCache(cache.NewTTLCache(), time.Hour))

	first, err := l.Load(context.Background(), "C", rangeFrom, rangeTo)
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.Load(context.Background(), "C", rangeFrom, rangeTo)
	if err != nil {
		t.Fatal(err)
	}
	if f.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls)
	}
	if first.Len() != second.Len() || !first.Last().Time.Equal(second.Last().Time) || first.Last().Close != second.Last().Close {
		t.Error("cached series differs from fetched series")
	}
}

func TestLoaderDefaultRange(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	l := NewLoader(&MockFetcher{Price: 10, Step: 0.1}, WithClock(func() time.Time { return now }), WithLookbackYears(1))
	series, err := l.Load(context.Background(), "D", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if first := series.Bar(0).Time; first.Before(now.AddDate(-1, 0, -1)) {
		t.Errorf("first bar %s is older than the lookback", first)
	}
	if series.Len() < 250 || series.Len() > 262 {
		t.Errorf("one year of business days, got %d", series.Len())
	}
}

func TestBusinessDays(t *testing.T) {
	// 2024-01-05 is a Friday
	days := BusinessDays(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	if len(days) != 3 || days[1].Weekday() != time.Monday {
		t.Errorf("BusinessDays = %v", days)
	}
}

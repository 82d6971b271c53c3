package indicator

import (
	"math"
	"testing"
	"time"

	"StockCast/internal/model"
)

// linearSeries returns n daily bars with closes start, start+step, ...
func linearSeries(t *testing.T, n int, start, step float64) *model.PriceSeries {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = model.OHLCV{Time: base.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	s, err := model.NewPriceSeries("TEST", bars)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}
	return s
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSMAExact(t *testing.T) {
	s := linearSeries(t, 30, 100, 1)
	got := SMA(s.Closes(), 5)
	if got[9] != 107.0 {
		t.Errorf("SMA_5[9] = %v, want exactly 107.0", got[9])
	}
	for i := 0; i < 4; i++ {
		if !model.IsMissing(got[i]) {
			t.Errorf("SMA_5[%d] = %v, want missing", i, got[i])
		}
	}
	if got[4] != 102.0 {
		t.Errorf("SMA_5[4] = %v, want 102.0", got[4])
	}
}

func TestLastSMA(t *testing.T) {
	v, err := LastSMA([]float64{1, 2, 3, 4, 5}, 2)
	if err != nil || v != 4.5 {
		t.Errorf("LastSMA = %v, %v; want 4.5", v, err)
	}
	if _, err := LastSMA([]float64{1}, 2); err == nil {
		t.Error("expected error for short input")
	}
	if _, err := LastSMA([]float64{1}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"all gains", []float64{1, 2, 3, 4, 5, 6}, 100},
		{"flat", []float64{5, 5, 5, 5, 5, 5}, 50},
		{"all losses", []float64{6, 5, 4, 3, 2, 1}, 0},
		{"balanced", []float64{10, 11, 10, 11, 10}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.closes, 4)
			for i := 0; i < 4; i++ {
				if !model.IsMissing(got[i]) {
					t.Errorf("RSI[%d] = %v, want missing", i, got[i])
				}
			}
			if last := got[len(got)-1]; !approx(last, tt.want) {
				t.Errorf("last RSI = %v, want %v", last, tt.want)
			}
		})
	}
}

func TestLastRSIInsufficient(t *testing.T) {
	v, err := LastRSI([]float64{1, 2}, 14)
	if err != nil || v != 50 {
		t.Errorf("LastRSI = %v, %v; want 50", v, err)
	}
}

func TestRangeHelpers(t *testing.T) {
	s := linearSeries(t, 30, 100, 1)
	high, low, err := RecentRange(s.Bars(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if high != 130 || low != 119 {
		t.Errorf("RecentRange = %v/%v, want 130/119", high, low)
	}
	pos, _ := RangePosition(125, 130, 120)
	if pos != 0.5 {
		t.Errorf("RangePosition = %v, want 0.5", pos)
	}
	if pos, _ := RangePosition(200, 130, 120); pos != 1 {
		t.Errorf("RangePosition clamps to 1, got %v", pos)
	}
	if _, err := RangePosition(1, 0, 2); err == nil {
		t.Error("expected error for inverted range")
	}

	hi := RollingHigh(s.Bars(), 3)
	if !model.IsMissing(hi[1]) || hi[2] != 103 {
		t.Errorf("RollingHigh = %v, %v", hi[1], hi[2])
	}
	lo := RollingLow(s.Bars(), 3)
	if lo[2] != 99 {
		t.Errorf("RollingLow[2] = %v, want 99", lo[2])
	}
}

func TestTechanIndicators(t *testing.T) {
	flat := linearSeries(t, 60, 50, 0)
	ts, err := toTimeSeries(flat.Bars())
	if err != nil {
		t.Fatal(err)
	}

	ema := EMA(ts, 10)
	if !model.IsMissing(ema[8]) || !approx(ema[9], 50) || !approx(ema[59], 50) {
		t.Errorf("EMA on flat series = %v %v %v", ema[8], ema[9], ema[59])
	}

	line, sig, hist := MACD(ts, 12, 26, 9)
	if !model.IsMissing(line[24]) || model.IsMissing(line[25]) {
		t.Errorf("MACD line availability wrong at 24/25: %v %v", line[24], line[25])
	}
	if !model.IsMissing(sig[32]) || model.IsMissing(sig[33]) {
		t.Errorf("MACD signal availability wrong at 32/33: %v %v", sig[32], sig[33])
	}
	if !approx(line[59], 0) || !approx(sig[59], 0) || !approx(hist[59], 0) {
		t.Errorf("MACD on flat series = %v %v %v", line[59], sig[59], hist[59])
	}

	rising := linearSeries(t, 30, 100, 1)
	ts2, err := toTimeSeries(rising.Bars())
	if err != nil {
		t.Fatal(err)
	}
	atr := ATR(ts2, 14)
	if !model.IsMissing(atr[13]) || !approx(atr[14], 2) || !approx(atr[29], 2) {
		t.Errorf("ATR = %v %v %v, want missing, 2, 2", atr[13], atr[14], atr[29])
	}
}

func TestBollinger(t *testing.T) {
	upper, mid, lower := Bollinger([]float64{1, 2, 3, 4, 5}, 5, 2)
	if !approx(mid[4], 3) {
		t.Errorf("mid = %v, want 3", mid[4])
	}
	// sample std of 1..5 is sqrt(2.5)
	width := 2 * math.Sqrt(2.5)
	if !approx(upper[4], 3+width) || !approx(lower[4], 3-width) {
		t.Errorf("bands = %v/%v", upper[4], lower[4])
	}
	if !model.IsMissing(mid[3]) {
		t.Error("mid[3] should be missing")
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in      string
		kind    Kind
		window  int
		outputs int
		wantErr bool
	}{
		{"SMA_20", KindSMA, 20, 1, false},
		{"ema_12", KindEMA, 12, 1, false},
		{"RSI_14", KindRSI, 14, 1, false},
		{"MACD", KindMACD, 12, 3, false},
		{"MACD_5_10_3", KindMACD, 5, 3, false},
		{"BB_20", KindBB, 20, 3, false},
		{"BB_20_2.5", KindBB, 20, 3, false},
		{"ATR_14", KindATR, 14, 1, false},
		{"HIGH_252", KindHigh, 252, 1, false},
		{"LOGRET", KindLogRet, 0, 1, false},
		{"SMA_0", "", 0, 0, true},
		{"SMA", "", 0, 0, true},
		{"SMA_x", "", 0, 0, true},
		{"MACD_26_12_9", "", 0, 0, true},
		{"BB_1", "", 0, 0, true},
		{"VWAP_10", "", 0, 0, true},
		{"LOGRET_5", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			spec, err := ParseSpec(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSpec(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSpec(%q): %v", tt.in, err)
			}
			if spec.Kind != tt.kind || spec.Window != tt.window || len(spec.Outputs()) != tt.outputs {
				t.Errorf("ParseSpec(%q) = %+v", tt.in, spec)
			}
		})
	}
}

func TestNewBuilderRejectsDuplicates(t *testing.T) {
	if _, err := NewBuilder([]string{"SMA_20", "sma_20"}); err == nil {
		t.Error("expected duplicate error")
	}
}

func TestBuildLengthsMatchSeries(t *testing.T) {
	specs := []string{"SMA_5", "SMA_20", "EMA_12", "RSI_14", "MACD", "BB_20", "ATR_14", "HIGH_10", "LOW_10", "LOGRET"}
	b, err := NewBuilder(specs)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{0, 1, 3, 30, 120} {
		s := linearSeries(t, n, 100, 1)
		set, err := b.Build(s)
		if err != nil {
			t.Fatalf("Build(n=%d): %v", n, err)
		}
		for _, name := range b.Outputs() {
			v, ok := set.Get(name)
			if !ok {
				t.Fatalf("missing output %s", name)
			}
			if len(v) != n {
				t.Errorf("n=%d: %s has length %d", n, name, len(v))
			}
		}
	}
}

func TestBuildShortSeriesAllMissing(t *testing.T) {
	b, err := NewBuilder([]string{"SMA_20"})
	if err != nil {
		t.Fatal(err)
	}
	set, err := b.Build(linearSeries(t, 3, 100, 1))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	v, _ := set.Get("SMA_20")
	for i, x := range v {
		if !model.IsMissing(x) {
			t.Errorf("SMA_20[%d] = %v, want missing", i, x)
		}
	}
}

func TestBuildSMAValue(t *testing.T) {
	b, _ := NewBuilder([]string{"SMA_5"})
	set, err := b.Build(linearSeries(t, 30, 100, 1))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := set.At("SMA_5", 9); !ok || v != 107.0 {
		t.Errorf("SMA_5 at index 9 = %v (ok=%v), want 107.0", v, ok)
	}
}

// zigzagSeries is a rising series with a five-bar zigzag and uneven bar ranges.
func zigzagSeries(t *testing.T, n int) *model.PriceSeries {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := 100 + 0.5*float64(i) + 3*float64((i*7)%5-2)
		bars[i] = model.OHLCV{
			Time: base.AddDate(0, 0, i), Open: c, Close: c, Volume: 1000,
			High: c + 1 + 0.5*float64(i%3),
			Low:  c - 1 - 0.5*float64(i%2),
		}
	}
	s, err := model.NewPriceSeries("ZIG", bars)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTechanIndicatorsReferenceValues(t *testing.T) {
	ts, err := toTimeSeries(zigzagSeries(t, 60).Bars())
	if err != nil {
		t.Fatal(err)
	}
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

	ema := EMA(ts, 10)
	line, sig, hist := MACD(ts, 12, 26, 9)
	atr := ATR(ts, 14)

	missing := []struct {
		name string
		v    []float64
		i    int
	}{
		{"EMA_10", ema, 8},
		{"MACD", line, 24},
		{"MACD_SIGNAL", sig, 32},
		{"MACD_HIST", hist, 32},
		{"ATR_14", atr, 13},
	}
	for _, m := range missing {
		if !model.IsMissing(m.v[m.i]) {
			t.Errorf("%s[%d] = %v, want missing", m.name, m.i, m.v[m.i])
		}
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"EMA_10[9] seed", ema[9], 102.25},
		{"EMA_10[10]", ema[10], 101.6590909090909},
		{"EMA_10[30]", ema[30], 112.09112043420623},
		{"EMA_10[59]", ema[59], 127.78773055282429},
		{"MACD[25]", line[25], 3.18985878775527},
		{"MACD[33]", line[33], 3.489369783149556},
		{"MACD_SIGNAL[33] seed", sig[33], 3.4650906650524624},
		{"MACD_SIGNAL[40]", sig[40], 3.471767518445981},
		{"MACD[59]", line[59], 3.734556725769096},
		{"MACD_SIGNAL[59]", sig[59], 3.5531267657745866},
		{"MACD_HIST[59]", hist[59], 3.734556725769096 - 3.5531267657745866},
		{"ATR_14[14]", atr[14], 8.642857142857142},
		{"ATR_14[15]", atr[15], 8.785714285714286},
		{"ATR_14[59]", atr[59], 8.607142857142858},
	}
	for _, tt := range tests {
		if !near(tt.got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

// Package render turns series, indicators and forecasts into go-echarts HTML.
package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"StockCast/internal/model"
)

const dateLayout = "2006-01-02"

// Chart is anything go-echarts can render.
type Chart interface {
	Render(w io.Writer) error
}

// Renderer builds charts with a shared size.
type Renderer struct {
	Width  string
	Height string
	// ForecastContext is how many observed bars precede the projection on the forecast chart.
	ForecastContext int
}

func New() *Renderer {
	return &Renderer{Width: "1100px", Height: "480px", ForecastContext: 120}
}

func renderErr(what string, err error) error {
	return fmt.Errorf("render %s: %w: %v", what, model.ErrRenderFailure, err)
}

// lineData converts values to chart points. Missing values become "-", which
// echarts draws as a gap.
func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		if model.IsMissing(v) {
			out[i] = opts.LineData{Value: "-"}
			continue
		}
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func barData(values []float64) []opts.BarData {
	out := make([]opts.BarData, len(values))
	for i, v := range values {
		if model.IsMissing(v) {
			out[i] = opts.BarData{Value: "-"}
			continue
		}
		out[i] = opts.BarData{Value: v}
	}
	return out
}

func dates(series *model.PriceSeries) []string {
	out := make([]string, series.Len())
	for i := 0; i < series.Len(); i++ {
		out[i] = series.Bar(i).Time.Format(dateLayout)
	}
	return out
}

func (r *Renderer) newLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: r.Width, Height: r.Height}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: true, Top: "30"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: true}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	return line
}

var plain = charts.WithLineChartOpts(opts.LineChart{ShowSymbol: false})

// PriceOverlay reports whether an indicator is plotted on the price axis.
func PriceOverlay(name string) bool {
	switch {
	case strings.HasPrefix(name, "SMA_"), strings.HasPrefix(name, "EMA_"):
		return true
	case strings.HasPrefix(name, "BB") && (strings.HasSuffix(name, "_UPPER") || strings.HasSuffix(name, "_LOWER")):
		return true
	}
	return false
}

// History charts the close price with every moving-average style overlay in set.
func (r *Renderer) History(series *model.PriceSeries, set *model.IndicatorSet) (*charts.Line, error) {
	if series == nil || series.Len() == 0 {
		return nil, renderErr("history", fmt.Errorf("empty series"))
	}
	line := r.newLine(series.Symbol()+" price history", fmt.Sprintf("%d daily bars", series.Len()))
	line.SetXAxis(dates(series)).AddSeries("Close", lineData(series.Closes()), plain)

	if set != nil {
		if set.Len() != series.Len() {
			return nil, renderErr("history", fmt.Errorf("indicator length %d, series length %d", set.Len(), series.Len()))
		}
		for _, name := range set.Names() {
			if !PriceOverlay(name) {
				continue
			}
			values, _ := set.Get(name)
			line.AddSeries(name, lineData(values), plain,
				charts.WithLineStyleOpts(opts.LineStyle{Width: 1}))
		}
	}
	return line, nil
}

// Forecast charts the tail of the observed closes followed by the projection and its band.
func (r *Renderer) Forecast(series *model.PriceSeries, fc *model.Forecast) (*charts.Line, error) {
	if series == nil || series.Len() == 0 {
		return nil, renderErr("forecast", fmt.Errorf("empty series"))
	}
	if fc == nil || len(fc.Points) == 0 {
		return nil, renderErr("forecast", fmt.Errorf("no forecast points"))
	}

	tail := series
	if r.ForecastContext > 0 && series.Len() > r.ForecastContext {
		tail = series.Window(series.Bar(series.Len()-r.ForecastContext).Time, series.Last().Time)
	}
	n, k := tail.Len(), len(fc.Points)

	xs := append(dates(tail), make([]string, k)...)
	actual := make([]float64, n+k)
	value := make([]float64, n+k)
	lower := make([]float64, n+k)
	upper := make([]float64, n+k)
	for i := range actual {
		actual[i], value[i], lower[i], upper[i] = model.Missing, model.Missing, model.Missing, model.Missing
	}
	copy(actual, tail.Closes())
	// The projection starts from the last observed close so the lines join.
	value[n-1], lower[n-1], upper[n-1] = tail.Last().Close, tail.Last().Close, tail.Last().Close
	for j, p := range fc.Points {
		xs[n+j] = p.Time.Format(dateLayout)
		value[n+j], lower[n+j], upper[n+j] = p.Value, p.Lower, p.Upper
	}

	band := charts.WithLineStyleOpts(opts.LineStyle{Width: 1, Type: "dashed"})
	line := r.newLine(
		fmt.Sprintf("%s %d-day forecast", series.Symbol(), k),
		fmt.Sprintf("%s, %.0f%% band", fc.Model, fc.Confidence*100),
	)
	line.SetXAxis(xs).
		AddSeries("Actual", lineData(actual), plain).
		AddSeries("Forecast", lineData(value), plain).
		AddSeries("Lower", lineData(lower), plain, band).
		AddSeries("Upper", lineData(upper), plain, band)
	return line, nil
}

// Indicators charts the oscillators in set: RSI lines with 30/70 guides and
// MACD line, signal and histogram.
func (r *Renderer) Indicators(series *model.PriceSeries, set *model.IndicatorSet) (*components.Page, error) {
	cs, err := r.indicatorCharts(series, set)
	if err != nil {
		return nil, err
	}
	page := components.NewPage()
	page.PageTitle = series.Symbol() + " indicators"
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(cs...)
	return page, nil
}

func (r *Renderer) indicatorCharts(series *model.PriceSeries, set *model.IndicatorSet) ([]components.Charter, error) {
	if series == nil || series.Len() == 0 || set == nil {
		return nil, renderErr("indicators", fmt.Errorf("empty input"))
	}
	xs := dates(series)
	var out []components.Charter

	var rsi []string
	var macd []string
	for _, name := range set.Names() {
		switch {
		case strings.HasPrefix(name, "RSI_"):
			rsi = append(rsi, name)
		case isMACDLine(set, name):
			macd = append(macd, name)
		}
	}
	if len(rsi) == 0 && len(macd) == 0 {
		return nil, renderErr("indicators", fmt.Errorf("no RSI or MACD columns"))
	}

	if len(rsi) > 0 {
		line := r.newLine(series.Symbol()+" RSI", strings.Join(rsi, ", "))
		line.SetXAxis(xs)
		for i, name := range rsi {
			values, _ := set.Get(name)
			so := []charts.SeriesOpts{plain}
			if i == 0 {
				so = append(so, charts.WithMarkLineNameYAxisItemOpts(
					opts.MarkLineNameYAxisItem{Name: "oversold", YAxis: 30},
					opts.MarkLineNameYAxisItem{Name: "overbought", YAxis: 70},
				))
			}
			line.AddSeries(name, lineData(values), so...)
		}
		out = append(out, line)
	}

	for _, name := range macd {
		macdLine, _ := set.Get(name)
		signal, _ := set.Get(name + "_SIGNAL")
		hist, _ := set.Get(name + "_HIST")

		line := r.newLine(series.Symbol()+" "+name, "line, signal and histogram")
		line.SetXAxis(xs).
			AddSeries(name, lineData(macdLine), plain).
			AddSeries(name+"_SIGNAL", lineData(signal), plain)
		bar := charts.NewBar()
		bar.SetXAxis(xs).AddSeries(name+"_HIST", barData(hist))
		line.Overlap(bar)
		out = append(out, line)
	}
	return out, nil
}

func isMACDLine(set *model.IndicatorSet, name string) bool {
	if !strings.HasPrefix(name, "MACD") {
		return false
	}
	_, sig := set.Get(name + "_SIGNAL")
	_, hist := set.Get(name + "_HIST")
	return sig && hist
}

// Write renders c into w, classifying any failure as a render failure.
func Write(w io.Writer, what string, c Chart) error {
	if err := c.Render(w); err != nil {
		return renderErr(what, err)
	}
	return nil
}

// Report is everything a full chart set is drawn from.
type Report struct {
	Series     *model.PriceSeries
	Indicators *model.IndicatorSet
	Forecast   *model.Forecast
}

// Page assembles history, forecast and indicator charts on one page.
func (r *Renderer) Page(rep Report) (*components.Page, error) {
	hist, err := r.History(rep.Series, rep.Indicators)
	if err != nil {
		return nil, err
	}
	page := components.NewPage()
	page.PageTitle = rep.Series.Symbol() + " report"
	page.AddCharts(hist)

	if rep.Forecast != nil {
		fc, err := r.Forecast(rep.Series, rep.Forecast)
		if err != nil {
			return nil, err
		}
		page.AddCharts(fc)
	}
	// Oscillators are optional on the combined page.
	if cs, err := r.indicatorCharts(rep.Series, rep.Indicators); err == nil {
		page.AddCharts(cs...)
	}
	return page, nil
}

// WriteFiles renders the report into dir as <symbol>_history.html,
// <symbol>_forecast.html, <symbol>_indicators.html and <symbol>_report.html.
// It returns the paths written.
func (r *Renderer) WriteFiles(dir string, rep Report) ([]string, error) {
	if rep.Series == nil {
		return nil, renderErr("files", fmt.Errorf("empty series"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, renderErr("files", err)
	}
	base := fileSafe(rep.Series.Symbol())

	type item struct {
		name     string
		build    func() (Chart, error)
		optional bool
	}
	items := []item{
		{"history", func() (Chart, error) { return r.History(rep.Series, rep.Indicators) }, false},
		{"indicators", func() (Chart, error) { return r.Indicators(rep.Series, rep.Indicators) }, true},
		{"report", func() (Chart, error) { return r.Page(rep) }, false},
	}
	if rep.Forecast != nil {
		items = append(items, item{"forecast", func() (Chart, error) { return r.Forecast(rep.Series, rep.Forecast) }, false})
	}

	var paths []string
	for _, it := range items {
		c, err := it.build()
		if err != nil {
			if it.optional {
				continue
			}
			return paths, err
		}
		path := filepath.Join(dir, base+"_"+it.name+".html")
		if err := writeFile(path, it.name, c); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path, what string, c Chart) error {
	f, err := os.Create(path)
	if err != nil {
		return renderErr(what, err)
	}
	if err := Write(f, what, c); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return renderErr(what, err)
	}
	return nil
}

func fileSafe(symbol string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, symbol)
}

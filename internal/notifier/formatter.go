package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"StockCast/internal/model"
	"StockCast/internal/pipeline"
)

var hundred = decimal.NewFromInt(100)

// money rounds a price to two decimals.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func money(v float64) string {
	if !finite(v) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// changePct returns the signed percentage move from base to v.
func changePct(base, v float64) string {
	if !finite(base) || !finite(v) {
		return "n/a"
	}
	b := decimal.NewFromFloat(base)
	if b.IsZero() {
		return "n/a"
	}
	pct := decimal.NewFromFloat(v).Sub(b).Div(b).Mul(hundred).Round(2)
	if pct.IsPositive() {
		return "+" + pct.StringFixed(2) + "%"
	}
	return pct.StringFixed(2) + "%"
}

// FormatForecast summarises one run: last close, projected close, band and held-out error.
func FormatForecast(res *pipeline.Result) string {
	var b strings.Builder
	symbol := html.EscapeString(res.Series.Symbol())
	last := res.Series.Last()

	fmt.Fprintf(&b, "📊 <b>%s</b> | %s\n", symbol, last.Time.Format("2006-01-02"))
	fmt.Fprintf(&b, "Last close: %s\n", money(last.Close))

	if final, ok := res.Forecast.Final(); ok {
		fmt.Fprintf(&b, "\n🔮 <b>%d-day forecast</b> (%s)\n", len(res.Forecast.Points), html.EscapeString(res.Forecast.Model))
		fmt.Fprintf(&b, "  %s: %s (%s)\n", final.Time.Format("2006-01-02"), money(final.Value), changePct(last.Close, final.Value))
		fmt.Fprintf(&b, "  %.0f%% band: %s .. %s\n", res.Forecast.Confidence*100, money(final.Lower), money(final.Upper))
	}
	if res.Evaluation != nil {
		m := res.Evaluation.Metrics
		fmt.Fprintf(&b, "  held-out RMSE %s, MAPE %s%%\n", money(m[model.MetricRMSE]), money(m[model.MetricMAPE]))
	}
	if res.Outlook != nil {
		b.WriteString("\n")
		b.WriteString(FormatOutlook(res.Outlook))
	}
	return b.String()
}

// FormatOutlook formats the factor breakdown of a technical outlook.
func FormatOutlook(o *model.Outlook) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>Outlook:</b> %s (%+.3f)\n", o.Stance.Label, o.TotalScore)
	for _, f := range o.Factors {
		fmt.Fprintf(&b, "  %s (%s): %+.0f ×%.2f = %+.3f\n",
			f.Name, html.EscapeString(f.Commentary), f.RawScore, f.Weight, f.Weighted)
	}
	if o.Warning != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(o.Warning))
	}
	return b.String()
}

// FormatFailure reports a run that stopped with err.
func FormatFailure(symbol string, err error) string {
	return fmt.Sprintf("⚠️ <b>%s</b>: %s", html.EscapeString(symbol), html.EscapeString(err.Error()))
}

// FormatRefresh joins per-symbol summaries under a dated header.
func FormatRefresh(at time.Time, ok, failed int, parts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓 <b>StockCast refresh</b> | %s\n", at.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%d forecast(s), %d failure(s)\n", ok, failed)
	for _, p := range parts {
		b.WriteString("\n")
		b.WriteString(p)
		if !strings.HasSuffix(p, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FormatLine is the one-line summary used in refresh digests.
func FormatLine(res *pipeline.Result) string {
	symbol := html.EscapeString(res.Series.Symbol())
	last := res.Series.Last().Close
	line := fmt.Sprintf("<b>%s</b> %s", symbol, money(last))
	if final, ok := res.Forecast.Final(); ok {
		line += fmt.Sprintf(" → %s (%s)", money(final.Value), changePct(last, final.Value))
	}
	if res.Outlook != nil {
		line += " · " + res.Outlook.Stance.Label
	}
	return line
}

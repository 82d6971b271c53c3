package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"StockCast/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance v8 chart API.
type YahooFetcher struct {
	BaseURL    string
	Client     *http.Client
	SymbolMap  map[string]string // maps internal symbol to Yahoo ticker
	Unadjusted bool              // keep raw prices instead of scaling by adjclose
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string, timeout time.Duration) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client:  newHTTPClient(proxyURL, timeout),
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

func (f *YahooFetcher) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]model.OHLCV, error) {
	base := f.BaseURL
	if base == "" {
		base = yahooBaseURL
	}
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(to.Unix()))
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", base, url.PathEscape(f.yahooSymbol(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w: %v", symbol, model.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w: %v", model.ErrDataUnavailable, err)
	}
	if !gjson.ValidBytes(body) {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("yahoo %s: status %d: %w", symbol, resp.StatusCode, model.ErrDataUnavailable)
		}
		return nil, fmt.Errorf("yahoo %s: invalid JSON payload: %w", symbol, model.ErrMalformedRecord)
	}

	chart := gjson.GetBytes(body, "chart")
	if desc := chart.Get("error.description"); desc.Exists() && desc.String() != "" {
		return nil, fmt.Errorf("yahoo %s: %s: %w", symbol, desc.String(), model.ErrDataUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s: status %d: %w", symbol, resp.StatusCode, model.ErrDataUnavailable)
	}
	return parseYahooChart(chart.Get("result.0"), !f.Unadjusted)
}

// parseYahooChart turns one chart result into daily bars. Null bars (holidays, halts) are skipped.
func parseYahooChart(result gjson.Result, adjust bool) ([]model.OHLCV, error) {
	timestamps := result.Get("timestamp").Array()
	if len(timestamps) == 0 {
		return nil, nil
	}
	loc := time.FixedZone("exchange", int(result.Get("meta.gmtoffset").Int()))

	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()
	adjCloses := result.Get("indicators.adjclose.0.adjclose").Array()

	at := func(arr []gjson.Result, i int) (float64, bool) {
		if i >= len(arr) || arr[i].Type != gjson.Number {
			return 0, false
		}
		return arr[i].Float(), true
	}

	bars := make([]model.OHLCV, 0, len(timestamps))
	for i, ts := range timestamps {
		if ts.Type != gjson.Number {
			return nil, &model.RecordError{Row: i, Field: "timestamp", Err: fmt.Errorf("not a number: %s", ts.Raw)}
		}
		c, ok := at(closes, i)
		if !ok {
			continue // skip null bars (holidays etc.)
		}
		o, _ := at(opens, i)
		h, _ := at(highs, i)
		l, _ := at(lows, i)
		v, _ := at(volumes, i)

		if adjust && c != 0 {
			if adj, ok := at(adjCloses, i); ok {
				factor := adj / c
				o, h, l, c = o*factor, h*factor, l*factor, adj
			}
		}

		bars = append(bars, model.OHLCV{
			Time:   dayOf(time.Unix(ts.Int(), 0), loc),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	return bars, nil
}

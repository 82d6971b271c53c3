package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"StockCast/internal/model"
)

// Fetcher defines the interface for fetching daily market data.
// Returned bars may be unsorted or contain duplicates; the Loader cleans them.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]model.OHLCV, error)
	Name() string
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// dayOf truncates t to midnight UTC of its calendar date in loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

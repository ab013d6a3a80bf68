package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// maxCandlesPerRequest is the exchange API's hard cap per candles call.
const maxCandlesPerRequest = 300

// FeedConfig configures the exchange candle client.
type FeedConfig struct {
	BaseURL    string // e.g. https://api.exchange.coinbase.com
	RatePerSec int    // request budget against the public endpoint
	Timeout    time.Duration
}

// ExchangeFeed fetches candles from a Coinbase-Exchange-style public API.
// All requests go through a shared rate limiter so concurrent strategy
// workers cannot trip the endpoint's request budget.
type ExchangeFeed struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewExchangeFeed(cfg FeedConfig, log *slog.Logger) *ExchangeFeed {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExchangeFeed{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}
}

// Candles returns up to maxCandlesPerRequest buckets ending now, in
// ascending time order.
func (f *ExchangeFeed) Candles(ctx context.Context, product string, g Granularity, lookbackDays int) (Series, error) {
	secs := g.Seconds()
	if secs == 0 {
		return nil, fmt.Errorf("unknown granularity %q", g)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(lookbackDays) * 24 * time.Hour)
	if oldest := end.Add(-time.Duration(maxCandlesPerRequest*secs) * time.Second); start.Before(oldest) {
		start = oldest
	}

	q := url.Values{}
	q.Set("granularity", fmt.Sprint(secs))
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	reqURL := fmt.Sprintf("%s/products/%s/candles?%s", f.baseURL, url.PathEscape(product), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", product, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch candles for %s: status %d: %s", product, resp.StatusCode, body)
	}

	// Rows are [time, low, high, open, close, volume], newest first.
	var rows [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode candles for %s: %w", product, err)
	}

	series := make(Series, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		series = append(series, Candle{
			Time:   time.Unix(int64(row[0]), 0).UTC(),
			Low:    row[1],
			High:   row[2],
			Open:   row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })

	f.log.Debug("candles fetched",
		slog.String("product", product),
		slog.String("granularity", string(g)),
		slog.Int("count", len(series)))
	return series, nil
}

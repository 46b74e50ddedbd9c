package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

const defaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	Retry     RetryPolicy
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// yahooQuery maps a timeframe onto chart API parameters.
var yahooQuery = map[timeframe.ID]struct{ interval, rng string }{
	timeframe.OneDay:   {"5m", "1d"},
	timeframe.OneWeek:  {"1d", "1mo"},
	timeframe.OneMonth: {"1d", "3mo"},
	timeframe.OneYear:  {"1wk", "2y"},
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(baseURL, proxyURL string, opts ...Option) *YahooFetcher {
	if baseURL == "" {
		baseURL = defaultYahooURL
	}
	client, policy := applyOptions(proxyURL, opts)
	return &YahooFetcher{
		BaseURL: baseURL,
		Client:  client,
		Retry:   policy,
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

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// FetchSeries fetches and normalizes the bars for tf. Every failure wraps ErrUpstreamUnavailable.
func (f *YahooFetcher) FetchSeries(ctx context.Context, symbol string, tf timeframe.Timeframe) (model.Series, error) {
	q, ok := yahooQuery[tf.ID]
	if !ok {
		return nil, fmt.Errorf("%w: yahoo: no query for timeframe %s", ErrUpstreamUnavailable, tf.ID)
	}
	u := fmt.Sprintf("%s/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), q.interval, q.rng)
	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0")

	body, err := getWithRetry(ctx, f.Client, f.Retry, u, header)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo %s %s: %v", ErrUpstreamUnavailable, symbol, tf.ID, err)
	}
	series, err := parseYahooChart(body, tf)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo %s %s: %w", ErrUpstreamUnavailable, symbol, tf.ID, err)
	}
	return series, nil
}

func parseYahooChart(body []byte, tf timeframe.Timeframe) (model.Series, error) {
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode: %v", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("no data returned")
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote block")
	}
	quote := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(quote.Open) != n || len(quote.High) != n || len(quote.Low) != n || len(quote.Close) != n {
		return nil, fmt.Errorf("quote arrays do not match %d timestamps", n)
	}

	series := make(model.Series, 0, n)
	for i, ts := range result.Timestamp {
		o, okO := toFloat(quote.Open[i])
		h, okH := toFloat(quote.High[i])
		l, okL := toFloat(quote.Low[i])
		c, okC := toFloat(quote.Close[i])
		if !okO || !okH || !okL || !okC {
			continue // null bars (holidays, halts)
		}
		bar := model.Bar{Time: time.Unix(ts, 0).UTC(), Open: o, High: h, Low: l, Close: c}
		if i < len(quote.Volume) {
			if v, ok := toFloat(quote.Volume[i]); ok {
				bar.Volume = v
				bar.HasVolume = true
			}
		}
		series = append(series, bar)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("all bars were null")
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	if tf.Limit > 0 && len(series) > tf.Limit {
		series = series[len(series)-tf.Limit:]
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

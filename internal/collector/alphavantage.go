package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

const defaultAlphaVantageURL = "https://www.alphavantage.co/query"

// noticeFields are top-level fields the provider returns instead of data when a request
// is throttled, over quota or rejected.
var noticeFields = []string{"Note", "Information", "Error Message"}

// AlphaVantageFetcher implements Fetcher using the Alpha Vantage time series API.
type AlphaVantageFetcher struct {
	BaseURL  string
	APIKey   string
	Client   *http.Client
	Retry    RetryPolicy
	validate *validator.Validate
}

// Option configures an AlphaVantageFetcher or YahooFetcher.
type Option func(*fetcherOptions)

type fetcherOptions struct {
	client *http.Client
	retry  *RetryPolicy
}

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *fetcherOptions) {
		if hc != nil {
			o.client = hc
		}
	}
}

// WithRetryPolicy overrides the default backoff policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *fetcherOptions) {
		o.retry = &p
	}
}

func applyOptions(proxyURL string, opts []Option) (*http.Client, RetryPolicy) {
	o := fetcherOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	client := o.client
	if client == nil {
		client = newHTTPClient(proxyURL)
	}
	policy := DefaultRetryPolicy()
	if o.retry != nil {
		policy = *o.retry
	}
	return client, policy
}

// NewAlphaVantageFetcher creates a new fetcher with optional proxy support.
func NewAlphaVantageFetcher(baseURL, apiKey, proxyURL string, opts ...Option) *AlphaVantageFetcher {
	if baseURL == "" {
		baseURL = defaultAlphaVantageURL
	}
	client, policy := applyOptions(proxyURL, opts)
	return &AlphaVantageFetcher{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Client:   client,
		Retry:    policy,
		validate: validator.New(),
	}
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

// avRecord is one bar of the provider's time series object. Values arrive as strings.
type avRecord struct {
	Open   string `json:"1. open" validate:"required,numeric"`
	High   string `json:"2. high" validate:"required,numeric"`
	Low    string `json:"3. low" validate:"required,numeric"`
	Close  string `json:"4. close" validate:"required,numeric"`
	Volume string `json:"5. volume" validate:"omitempty,numeric"`
}

func (f *AlphaVantageFetcher) queryURL(symbol string, tf timeframe.Timeframe) string {
	q := url.Values{}
	q.Set("function", tf.Function)
	q.Set("symbol", symbol)
	q.Set("apikey", f.APIKey)
	if tf.Intraday() {
		q.Set("interval", tf.Interval)
	}
	return f.BaseURL + "?" + q.Encode()
}

// FetchSeries fetches and normalizes the bars for tf. Every failure wraps ErrUpstreamUnavailable.
func (f *AlphaVantageFetcher) FetchSeries(ctx context.Context, symbol string, tf timeframe.Timeframe) (model.Series, error) {
	body, err := getWithRetry(ctx, f.Client, f.Retry, f.queryURL(symbol, tf), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: alphavantage %s %s: %v", ErrUpstreamUnavailable, symbol, tf.ID, err)
	}
	series, err := f.parse(body, tf)
	if err != nil {
		return nil, fmt.Errorf("%w: alphavantage %s %s: %w", ErrUpstreamUnavailable, symbol, tf.ID, err)
	}
	return series, nil
}

func (f *AlphaVantageFetcher) parse(body []byte, tf timeframe.Timeframe) (model.Series, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %v", err)
	}
	for _, field := range noticeFields {
		if msg, ok := raw[field]; ok {
			var text string
			_ = json.Unmarshal(msg, &text)
			return nil, fmt.Errorf("%w: %s: %s", ErrRateLimited, field, text)
		}
	}
	seriesRaw, ok := raw[tf.SeriesField]
	if !ok {
		return nil, fmt.Errorf("missing field %q", tf.SeriesField)
	}
	var records map[string]avRecord
	if err := json.Unmarshal(seriesRaw, &records); err != nil {
		return nil, fmt.Errorf("decode %q: %v", tf.SeriesField, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("field %q is empty", tf.SeriesField)
	}

	layout := "2006-01-02"
	if tf.Intraday() {
		layout = "2006-01-02 15:04:05"
	}
	series := make(model.Series, 0, len(records))
	for stamp, rec := range records {
		bar, err := f.toBar(stamp, layout, rec)
		if err != nil {
			return nil, err
		}
		series = append(series, bar)
	}

	// Provider objects are keyed newest-first; canonical order is oldest-first.
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	if tf.Limit > 0 && len(series) > tf.Limit {
		series = series[len(series)-tf.Limit:]
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

func (f *AlphaVantageFetcher) toBar(stamp, layout string, rec avRecord) (model.Bar, error) {
	if err := f.validate.Struct(rec); err != nil {
		return model.Bar{}, fmt.Errorf("record %s: %v", stamp, err)
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(stamp), time.UTC)
	if err != nil {
		return model.Bar{}, fmt.Errorf("record %s: bad timestamp: %v", stamp, err)
	}
	bar := model.Bar{Time: t}
	fields := []struct {
		dst *float64
		src string
	}{
		{&bar.Open, rec.Open},
		{&bar.High, rec.High},
		{&bar.Low, rec.Low},
		{&bar.Close, rec.Close},
	}
	for _, fld := range fields {
		v, err := strconv.ParseFloat(fld.src, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("record %s: %v", stamp, err)
		}
		*fld.dst = v
	}
	if rec.Volume != "" {
		v, err := strconv.ParseFloat(rec.Volume, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("record %s: %v", stamp, err)
		}
		bar.Volume = v
		bar.HasVolume = true
	}
	return bar, nil
}

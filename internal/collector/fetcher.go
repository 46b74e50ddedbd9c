package collector

import (
	"context"
	"errors"

	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

var (
	// ErrUpstreamUnavailable wraps every failure of a live fetch. Callers fall back to
	// synthetic data rather than surfacing it.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrRateLimited marks a provider quota or throttling notice.
	ErrRateLimited = errors.New("upstream rate limited")
)

// Fetcher defines the interface for fetching live market data.
type Fetcher interface {
	FetchSeries(ctx context.Context, symbol string, tf timeframe.Timeframe) (model.Series, error)
	Name() string
}

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

// ErrInvalidSeries reports a series that breaks the OHLC or ordering invariants.
var ErrInvalidSeries = errors.New("invalid series")

// Bar represents a single candlestick.
type Bar struct {
	Time      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	HasVolume bool
}

// Valid reports whether the bar brackets its open and close.
func (b Bar) Valid() bool {
	return b.Low <= b.Open && b.Low <= b.Close && b.High >= b.Open && b.High >= b.Close
}

// Series is an ordered, oldest-first sequence of bars.
type Series []Bar

// Clone returns a copy that shares no memory with s.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Closes extracts the close prices in order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// Validate checks bar brackets and strictly increasing times.
func (s Series) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidSeries)
	}
	for i, b := range s {
		if !b.Valid() {
			return fmt.Errorf("%w: bar %d at %s has o=%.4f h=%.4f l=%.4f c=%.4f",
				ErrInvalidSeries, i, b.Time.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
		}
		if i > 0 && !s[i-1].Time.Before(b.Time) {
			return fmt.Errorf("%w: bar %d at %s is not after %s",
				ErrInvalidSeries, i, b.Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// RequestKey identifies a logical data request. It doubles as the cache key.
type RequestKey struct {
	Symbol    string
	Timeframe timeframe.ID
}

// NewRequestKey normalizes the symbol to trimmed upper case.
func NewRequestKey(symbol string, tf timeframe.ID) RequestKey {
	return RequestKey{Symbol: NormalizeSymbol(symbol), Timeframe: tf}
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (k RequestKey) String() string {
	return k.Symbol + "-" + string(k.Timeframe)
}

// CacheEntry is the resolved result for one RequestKey.
type CacheEntry struct {
	Key        RequestKey
	Series     Series
	Stats      Stats
	Simulated  bool
	Source     string // fetcher name, or "synthetic"
	InsertedAt time.Time
}

// Clone returns a copy whose series can be modified without affecting e.
func (e CacheEntry) Clone() CacheEntry {
	e.Series = e.Series.Clone()
	return e
}

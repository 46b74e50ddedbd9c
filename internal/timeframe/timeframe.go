package timeframe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownTimeframe is returned for identifiers outside the fixed catalog.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// ID identifies a chart timeframe.
type ID string

const (
	OneDay   ID = "1D"
	OneWeek  ID = "1W"
	OneMonth ID = "1M"
	OneYear  ID = "1Y"
)

// Timeframe describes how a chart timeframe maps onto the upstream query.
type Timeframe struct {
	ID       ID
	Function string // upstream aggregation function
	Interval string // empty unless intraday
	Limit    int    // keep only the most recent Limit bars, 0 keeps all
	// SeriesField is the name of the object holding the bars in the upstream response.
	SeriesField string
	Bucket      time.Duration
	Label       string
}

// Intraday reports whether bars are timestamped to the minute.
func (t Timeframe) Intraday() bool { return t.Interval != "" }

// catalog is kept in display order.
var catalog = []Timeframe{
	{ID: OneDay, Function: "TIME_SERIES_INTRADAY", Interval: "5min", SeriesField: "Time Series (5min)", Bucket: 5 * time.Minute, Label: "1 Day"},
	{ID: OneWeek, Function: "TIME_SERIES_DAILY", Limit: 7, SeriesField: "Time Series (Daily)", Bucket: 24 * time.Hour, Label: "1 Week"},
	{ID: OneMonth, Function: "TIME_SERIES_DAILY", Limit: 30, SeriesField: "Time Series (Daily)", Bucket: 24 * time.Hour, Label: "1 Month"},
	{ID: OneYear, Function: "TIME_SERIES_WEEKLY", Limit: 52, SeriesField: "Weekly Time Series", Bucket: 7 * 24 * time.Hour, Label: "1 Year"},
}

// Lookup returns the catalog entry for id.
func Lookup(id ID) (Timeframe, error) {
	for _, tf := range catalog {
		if tf.ID == id {
			return tf, nil
		}
	}
	return Timeframe{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, string(id))
}

// Parse looks up a user supplied identifier, ignoring case and surrounding space.
func Parse(s string) (Timeframe, error) {
	return Lookup(ID(strings.ToUpper(strings.TrimSpace(s))))
}

// All returns every timeframe in display order.
func All() []Timeframe {
	out := make([]Timeframe, len(catalog))
	copy(out, catalog)
	return out
}

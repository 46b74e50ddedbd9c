package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/ZA27101977/stocktrader/internal/model"
)

// DeriveStats summarizes the last two bars of a series. High, low and volume are those of
// the last bar, matching the per-bar ticker display rather than session extremes.
func DeriveStats(series model.Series) model.Stats {
	last, ok := series.Last()
	if !ok {
		return model.Stats{}
	}
	stats := model.Stats{
		Price:     last.Close,
		High:      last.High,
		Low:       last.Low,
		Volume:    last.Volume,
		HasVolume: last.HasVolume,
	}
	if len(series) < 2 {
		return stats
	}
	prev := series[len(series)-2].Close
	stats.Change = last.Close - prev
	if prev != 0 {
		stats.PercentChange = Round2(stats.Change / prev * 100)
	}
	return stats
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

package calculator

import (
	"errors"

	"github.com/ZA27101977/stocktrader/internal/model"
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateMomentum returns (last close - reference close) / reference close, where the
// reference is the close lookback bars before the last one, or the first bar when the
// series is shorter than that.
func CalculateMomentum(series model.Series, lookback int) (momentum, reference float64, err error) {
	if lookback <= 0 {
		return 0, 0, errors.New("lookback must be positive")
	}
	if len(series) < 2 {
		return 0, 0, errors.New("not enough data for momentum calculation")
	}
	idx := len(series) - 1 - lookback
	if idx < 0 {
		idx = 0
	}
	reference = series[idx].Close
	if reference == 0 {
		return 0, 0, errors.New("reference close is zero")
	}
	last := series[len(series)-1].Close
	return (last - reference) / reference, reference, nil
}

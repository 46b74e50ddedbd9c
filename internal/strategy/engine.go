package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ZA27101977/stocktrader/internal/calculator"
	"github.com/ZA27101977/stocktrader/internal/model"
)

const (
	buyBase       = 70
	sellBase      = 30
	holdBase      = 50
	maxHoldJitter = 5
	scoreScale    = 500 // points per unit of momentum beyond the threshold
)

// Reference selects what momentum is measured against.
type Reference string

const (
	ReferenceClose   Reference = "close"   // the close Lookback bars back
	ReferenceAverage Reference = "average" // the Lookback-bar simple moving average
)

// ParseReference accepts "close", "average" or empty, which means close.
func ParseReference(s string) (Reference, error) {
	switch Reference(s) {
	case "", ReferenceClose:
		return ReferenceClose, nil
	case ReferenceAverage:
		return ReferenceAverage, nil
	}
	return "", fmt.Errorf("unknown momentum reference %q", s)
}

// Engine is the heuristic recommendation engine. It is pure: equal inputs give equal output.
type Engine struct {
	Threshold   float64 // momentum band, 0.02 = ±2%
	Lookback    int     // bars back to the reference close, or the average window
	Reference   Reference
	RangeWindow int     // bars scanned for support/resistance
	RSIPeriod   int
	BandPct     float64 // manual mode volatility band
}

// NewEngine returns an engine with the default thresholds.
func NewEngine() *Engine {
	return &Engine{
		Threshold:   0.02,
		Lookback:    10,
		Reference:   ReferenceClose,
		RangeWindow: 20,
		RSIPeriod:   14,
		BandPct:     0.01,
	}
}

// Score derives a recommendation from a series.
func (e *Engine) Score(symbol string, series model.Series) model.Recommendation {
	symbol = model.NormalizeSymbol(symbol)
	last, ok := series.Last()
	if !ok {
		return model.Recommendation{
			Verdict: model.VerdictHold,
			Score:   holdBase,
			Insight: fmt.Sprintf("%s has no price history yet.", symbol),
			Source:  model.SourceHeuristic,
		}
	}

	momentum := e.momentum(series)
	resistance, support, err := calculator.CalculateRange(series, e.RangeWindow)
	if err != nil {
		support, resistance = last.Low, last.High
	}
	rsi, err := calculator.CalculateRSI(series, e.RSIPeriod)
	if err != nil {
		rsi = 50
	}

	position, err := calculator.CalculateRangePosition(last.Close, resistance, support)
	if err != nil {
		position = 0.5
	}

	verdict, score, cond := classifyMomentum(momentum, e.Threshold)
	return model.Recommendation{
		Verdict: verdict,
		Score:   score,
		Insight: insight(symbol, cond, reading{
			momentum:   momentum,
			window:     e.window(series),
			rsi:        rsi,
			support:    support,
			resistance: resistance,
			position:   position,
		}),
		Support:    &support,
		Resistance: &resistance,
		Source:     model.SourceHeuristic,
	}
}

// momentum is zero when the series is too short or the reference is zero.
func (e *Engine) momentum(series model.Series) float64 {
	if e.Reference != ReferenceAverage {
		m, _, err := calculator.CalculateMomentum(series, e.Lookback)
		if err != nil {
			return 0
		}
		return m
	}
	if len(series) < 2 {
		return 0
	}
	avg, err := calculator.CalculateSMA(series.Closes(), e.window(series))
	if err != nil || avg == 0 {
		return 0
	}
	last, _ := series.Last()
	return (last.Close - avg) / avg
}

// window is the number of bars the momentum reference actually spans.
func (e *Engine) window(series model.Series) int {
	n := e.Lookback
	if e.Reference == ReferenceAverage {
		if n > len(series) {
			n = len(series)
		}
		return n
	}
	if n > len(series)-1 {
		n = len(series) - 1
	}
	return n
}

// ScoreManual derives a neutral recommendation around a manually entered price.
func (e *Engine) ScoreManual(symbol string, price float64) model.Recommendation {
	symbol = model.NormalizeSymbol(symbol)
	p := decimal.NewFromFloat(price)
	band := p.Mul(decimal.NewFromFloat(e.BandPct))
	support, _ := p.Sub(band).Round(2).Float64()
	resistance, _ := p.Add(band).Round(2).Float64()
	return model.Recommendation{
		Verdict: model.VerdictHold,
		Score:   holdBase,
		Insight: fmt.Sprintf("%s at manual price %.2f: range-bound between support %.2f and resistance %.2f.",
			symbol, price, support, resistance),
		Support:    &support,
		Resistance: &resistance,
		Source:     model.SourceHeuristic,
	}
}

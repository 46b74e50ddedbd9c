package strategy

import (
	"fmt"
	"math"

	"github.com/ZA27101977/stocktrader/internal/model"
)

// condition is the chart pattern named in the insight text.
type condition int

const (
	consolidation condition = iota
	breakout
	supportBreak
)

// classifyMomentum maps momentum onto a verdict and a 0-100 score.
// Above +threshold: BUY from 70 upward. Below -threshold: SELL from 30 downward.
// In between: HOLD at 50 shifted by at most 5 points in the direction of the drift.
func classifyMomentum(momentum, threshold float64) (model.Verdict, int, condition) {
	excess := math.Abs(momentum) - threshold
	switch {
	case momentum > threshold:
		return model.VerdictBuy, clampScore(buyBase + int(math.Round(excess*scoreScale))), breakout
	case momentum < -threshold:
		return model.VerdictSell, clampScore(sellBase - int(math.Round(excess*scoreScale))), supportBreak
	default:
		jitter := 0
		if threshold > 0 {
			jitter = int(math.Round(momentum / threshold * maxHoldJitter))
		}
		return model.VerdictHold, clampScore(holdBase + jitter), consolidation
	}
}

func clampScore(s int) int {
	switch {
	case s > 100:
		return 100
	case s < 0:
		return 0
	default:
		return s
	}
}

// rsiNote flags stretched readings.
func rsiNote(rsi float64) string {
	switch {
	case rsi >= 85:
		return " RSI above 85, consider taking profit."
	case rsi >= 70:
		return " RSI is overbought."
	case rsi <= 15:
		return " RSI below 15, deeply oversold."
	case rsi <= 30:
		return " RSI is oversold."
	default:
		return ""
	}
}

// reading holds the indicator values quoted in the insight.
type reading struct {
	momentum   float64
	window     int
	rsi        float64
	support    float64
	resistance float64
	position   float64 // 0 at support, 1 at resistance
}

func insight(symbol string, cond condition, r reading) string {
	var text string
	switch cond {
	case breakout:
		text = fmt.Sprintf("%s is breaking out, up %.2f%% over the last %d bars with RSI(14) at %.0f. Next resistance near %.2f.",
			symbol, r.momentum*100, r.window, r.rsi, r.resistance)
	case supportBreak:
		text = fmt.Sprintf("%s broke below support, down %.2f%% over the last %d bars with RSI(14) at %.0f. Watch %.2f as the floor.",
			symbol, -r.momentum*100, r.window, r.rsi, r.support)
	default:
		text = fmt.Sprintf("%s is consolidating between %.2f and %.2f (%+.2f%%, RSI(14) %.0f).%s",
			symbol, r.support, r.resistance, r.momentum*100, r.rsi, rangeNote(r.position))
	}
	return text + rsiNote(r.rsi)
}

// rangeNote places the last close within the consolidation range.
func rangeNote(position float64) string {
	switch {
	case position >= 0.8:
		return fmt.Sprintf(" Trading near the top of the range (%.0f%%).", position*100)
	case position <= 0.2:
		return fmt.Sprintf(" Trading near the bottom of the range (%.0f%%).", position*100)
	default:
		return fmt.Sprintf(" Trading mid-range (%.0f%%).", position*100)
	}
}

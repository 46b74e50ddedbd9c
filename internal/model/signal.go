package model

// Verdict is the advisory action.
type Verdict string

const (
	VerdictBuy  Verdict = "BUY"
	VerdictSell Verdict = "SELL"
	VerdictHold Verdict = "HOLD"
)

// Valid reports whether v is one of the known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictBuy, VerdictSell, VerdictHold:
		return true
	}
	return false
}

const (
	SourceHeuristic = "heuristic"
	SourceAdvisor   = "advisor"
)

// Recommendation is the advisory output shown next to a chart.
type Recommendation struct {
	Verdict    Verdict
	Score      int // 0-100
	Insight    string
	Support    *float64
	Resistance *float64
	Source     string
}

// RecommendationUpdate delivers a recommendation computed after a resolution returned.
type RecommendationUpdate struct {
	Key            RequestKey
	Seq            uint64
	Recommendation Recommendation
}

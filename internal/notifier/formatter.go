package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

func timeframeLabel(id timeframe.ID) string {
	if tf, err := timeframe.Lookup(id); err == nil {
		return tf.Label
	}
	return string(id)
}

// percentLabel shows the signed percent for live data and "Simulated" otherwise.
func percentLabel(e model.CacheEntry) string {
	if e.Simulated {
		return "Simulated"
	}
	return e.Stats.PercentLabel()
}

// FormatQuote renders the chart header for one resolved entry. rec may be nil while the
// recommendation is still pending.
func FormatQuote(e model.CacheEntry, rec *model.Recommendation) string {
	var b strings.Builder

	badge := "LIVE"
	if e.Simulated {
		badge = "SIMULATED"
	}
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s [%s]\n\n", html.EscapeString(e.Key.Symbol), timeframeLabel(e.Key.Timeframe), badge))

	s := e.Stats
	b.WriteString(fmt.Sprintf("Price: %.2f\n", s.Price))
	b.WriteString(fmt.Sprintf("Change: %+.2f (%s)\n", s.Change, percentLabel(e)))
	b.WriteString(fmt.Sprintf("High / Low: %.2f / %.2f\n", s.High, s.Low))
	b.WriteString(fmt.Sprintf("Volume: %s\n", s.VolumeLabel()))
	if last, ok := e.Series.Last(); ok {
		b.WriteString(fmt.Sprintf("Bars: %d, last %s (%s)\n", len(e.Series), last.Time.Format("2006-01-02 15:04"), e.Source))
	}

	if rec != nil {
		b.WriteString("\n")
		b.WriteString(FormatRecommendation(*rec))
	} else {
		b.WriteString("\n⏳ Analysis pending\n")
	}
	return b.String()
}

// FormatRecommendation renders the advisory panel.
func FormatRecommendation(rec model.Recommendation) string {
	var b strings.Builder
	icon := "⏸"
	switch rec.Verdict {
	case model.VerdictBuy:
		icon = "🟢"
	case model.VerdictSell:
		icon = "🔴"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b> %d/100 (%s)\n", icon, rec.Verdict, rec.Score, rec.Source))
	if rec.Insight != "" {
		b.WriteString(html.EscapeString(rec.Insight))
		b.WriteString("\n")
	}
	if rec.Support != nil && rec.Resistance != nil {
		b.WriteString(fmt.Sprintf("Support %.2f | Resistance %.2f\n", *rec.Support, *rec.Resistance))
	}
	return b.String()
}

// FormatWatchlist renders one line per watched symbol. Symbols without an entry are shown
// as unavailable.
func FormatWatchlist(symbols []string, entries map[string]model.CacheEntry, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⭐ <b>Watchlist</b> | %s\n\n", now.Format("2006-01-02 15:04")))
	if len(symbols) == 0 {
		b.WriteString("(empty) use /add SYMBOL\n")
		return b.String()
	}
	for _, sym := range symbols {
		e, ok := entries[sym]
		if !ok {
			b.WriteString(fmt.Sprintf("%-6s --\n", sym))
			continue
		}
		b.WriteString(fmt.Sprintf("%-6s %10.2f  %s\n", sym, e.Stats.Price, percentLabel(e)))
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return strings.Join([]string{
		"<b>Commands</b>",
		"/quote SYMBOL [1D|1W|1M|1Y] - chart stats and analysis",
		"/manual SYMBOL PRICE - support/resistance around a price",
		"/watchlist - favorites summary",
		"/add SYMBOL - add to favorites",
		"/remove SYMBOL - remove from favorites",
		"/help - this message",
	}, "\n")
}

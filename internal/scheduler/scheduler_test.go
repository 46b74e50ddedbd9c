package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZA27101977/stocktrader/internal/cache"
	"github.com/ZA27101977/stocktrader/internal/collector"
	"github.com/ZA27101977/stocktrader/internal/coordinator"
	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
	"github.com/ZA27101977/stocktrader/internal/watchlist"
)

type countingFetcher struct {
	calls atomic.Int32
	fail  bool
}

func (f *countingFetcher) FetchSeries(_ context.Context, symbol string, _ timeframe.Timeframe) (model.Series, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, fmt.Errorf("%w: offline", collector.ErrUpstreamUnavailable)
	}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(model.Series, 20)
	for i := range s {
		c := 100 + float64(i)
		s[i] = model.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return s, nil
}

func (f *countingFetcher) Name() string { return "test" }

type captureSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (c *captureSender) Send(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return c.err
}

func newScheduler(t *testing.T, f *countingFetcher) (*Scheduler, *captureSender) {
	t.Helper()
	co := coordinator.New(collector.NewSource(f, nil, 0), cache.New())
	t.Cleanup(co.Close)
	wl, err := watchlist.NewManager(watchlist.NewMemoryStore())
	require.NoError(t, err)
	sender := &captureSender{}
	s := NewScheduler(context.Background(), co, wl, sender, "1d")
	s.RecWait = 2 * time.Second
	return s, sender
}

func TestNewScheduler_NormalizesTimeframe(t *testing.T) {
	s, _ := newScheduler(t, &countingFetcher{})
	assert.Equal(t, "1D", s.Timeframe)

	bad := NewScheduler(context.Background(), nil, nil, nil, "5Y")
	assert.Equal(t, "1D", bad.Timeframe)
}

func TestRegisterAll(t *testing.T) {
	s, _ := newScheduler(t, &countingFetcher{})
	require.NoError(t, s.RegisterAll("0 */15 * * * 1-5", "0 30 16 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 2)

	s2, _ := newScheduler(t, &countingFetcher{})
	assert.Error(t, s2.RegisterAll("every minute", "0 30 16 * * 1-5"))
}

func TestRefreshTask_RefreshesEveryWatchedSymbol(t *testing.T) {
	f := &countingFetcher{}
	s, _ := newScheduler(t, f)
	s.RunRefreshNow()
	assert.EqualValues(t, len(watchlist.DefaultSymbols), f.calls.Load())
	assert.Equal(t, len(watchlist.DefaultSymbols), s.Coordinator.Cache().Len())

	s.RunRefreshNow()
	assert.EqualValues(t, 2*len(watchlist.DefaultSymbols), f.calls.Load())
}

func TestReportTask_SendsWatchlist(t *testing.T) {
	f := &countingFetcher{}
	s, sender := newScheduler(t, f)
	s.RunRefreshNow()
	s.reportTask()

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Watchlist")
	assert.Contains(t, sender.sent[0], "AAPL")
	assert.Contains(t, sender.sent[0], "+0.85%")
	assert.EqualValues(t, len(watchlist.DefaultSymbols), f.calls.Load(), "report is served from cache")
}

func TestReportTask_SendErrorIsLogged(t *testing.T) {
	s, sender := newScheduler(t, &countingFetcher{})
	sender.err = errors.New("down")
	s.reportTask()
	assert.Len(t, sender.sent, 1)
}

func TestHandleCommand_Quote(t *testing.T) {
	s, _ := newScheduler(t, &countingFetcher{})
	out := s.HandleCommand(context.Background(), "/quote nvda 1w")
	assert.Contains(t, out, "<b>NVDA</b> | 1 Week [LIVE]")
	assert.Contains(t, out, "Price: 119.00")
	assert.Contains(t, out, "/100 (heuristic)")

	out = s.HandleCommand(context.Background(), "/quote@TerminalBot msft")
	assert.Contains(t, out, "1 Day")

	assert.Contains(t, s.HandleCommand(context.Background(), "/quote AAPL 5Y"), "unknown timeframe")
	assert.Contains(t, s.HandleCommand(context.Background(), "/quote"), "Usage")
}

func TestHandleCommand_QuoteSimulated(t *testing.T) {
	s, _ := newScheduler(t, &countingFetcher{fail: true})
	out := s.HandleCommand(context.Background(), "/quote XYZ 1D")
	assert.Contains(t, out, "[SIMULATED]")
	assert.Contains(t, out, "(Simulated)")
}

func TestHandleCommand_Manual(t *testing.T) {
	s, _ := newScheduler(t, &countingFetcher{})
	out := s.HandleCommand(context.Background(), "/manual aapl 100")
	assert.Contains(t, out, "<b>AAPL</b> manual 100.00")
	assert.Contains(t, out, "Support 99.00 | Resistance 101.00")
	assert.Contains(t, out, "<b>HOLD</b> 50/100")

	assert.Contains(t, s.HandleCommand(context.Background(), "/manual aapl abc"), "Invalid price")
	assert.Contains(t, s.HandleCommand(context.Background(), "/manual aapl"), "Usage")
}

func TestHandleCommand_QuoteAfterManual(t *testing.T) {
	s, _ := newScheduler(t, &countingFetcher{})
	ctx := context.Background()

	require.NotContains(t, s.HandleCommand(ctx, "/quote AAPL 1D"), "Analysis pending")
	require.Contains(t, s.HandleCommand(ctx, "/manual AAPL 100"), "HOLD")

	start := time.Now()
	out := s.HandleCommand(ctx, "/quote AAPL 1D")
	assert.NotContains(t, out, "Analysis pending")
	assert.Contains(t, out, "/100 (heuristic)")
	assert.Less(t, time.Since(start), s.RecWait)
}

func TestHandleCommand_Watchlist(t *testing.T) {
	s, _ := newScheduler(t, &countingFetcher{})
	ctx := context.Background()

	assert.Equal(t, "⭐ added AMD", s.HandleCommand(ctx, "/add amd"))
	assert.Contains(t, s.HandleCommand(ctx, "/add AMD"), "already")
	assert.Contains(t, s.HandleCommand(ctx, "/add bad,sym"), "invalid symbol")
	assert.Equal(t, "removed TSLA", s.HandleCommand(ctx, "/remove tsla"))
	assert.Contains(t, s.HandleCommand(ctx, "/remove TSLA"), "not on the watchlist")

	out := s.HandleCommand(ctx, "/watchlist")
	assert.Contains(t, out, "AMD")
	assert.NotContains(t, out, "TSLA")
}

func TestHandleCommand_Help(t *testing.T) {
	s, _ := newScheduler(t, &countingFetcher{})
	for _, cmd := range []string{"", "/help", "hello"} {
		assert.Contains(t, s.HandleCommand(context.Background(), cmd), "/quote SYMBOL")
	}
}

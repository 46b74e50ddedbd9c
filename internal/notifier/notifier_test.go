package notifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

func testNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "")
	n.BaseURL = url
	n.RetryDelay = time.Millisecond
	return n
}

func TestSend_PostsHTMLMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(srv.URL).Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>hi</b>", got["text"])
}

func TestSendWithRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := testNotifier(srv.URL)
	require.NoError(t, n.SendWithRetry(context.Background(), "x", 3))
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))

	atomic.StoreInt32(&hits, -10)
	err := n.SendWithRetry(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
}

func TestPolling_DispatchesCommands(t *testing.T) {
	var (
		mu      sync.Mutex
		replies []string
		polls   int32
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if atomic.AddInt32(&polls, 1) == 1 {
				assert.Equal(t, "0", r.URL.Query().Get("offset"))
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":7,"message":{"text":" /help "}},
					{"update_id":8},
					{"update_id":9,"message":{"text":"/quiet"}}]}`))
				return
			}
			assert.Equal(t, "10", r.URL.Query().Get("offset"))
			cancel()
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var p map[string]string
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &p)
			mu.Lock()
			replies = append(replies, p["text"])
			mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	handler := func(_ context.Context, cmd string) string {
		if cmd == "/help" {
			return "help text"
		}
		return ""
	}
	done := make(chan struct{})
	go func() {
		testNotifier(srv.URL).poll(ctx, handler, 0, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"help text"}, replies)
}

func quoteEntry(simulated bool) model.CacheEntry {
	t0 := time.Date(2024, 5, 1, 15, 55, 0, 0, time.UTC)
	return model.CacheEntry{
		Key:       model.NewRequestKey("AAPL", timeframe.OneDay),
		Series:    model.Series{{Time: t0, Open: 1, High: 2, Low: 0.5, Close: 1.5}},
		Stats:     model.Stats{Price: 189.234, Change: 1.2, PercentChange: 0.64, High: 190, Low: 188.5},
		Simulated: simulated,
		Source:    "alphavantage",
	}
}

func TestFormatQuote(t *testing.T) {
	live := FormatQuote(quoteEntry(false), nil)
	assert.Contains(t, live, "<b>AAPL</b> | 1 Day [LIVE]")
	assert.Contains(t, live, "Price: 189.23")
	assert.Contains(t, live, "Change: +1.20 (+0.64%)")
	assert.Contains(t, live, "Volume: --")
	assert.Contains(t, live, "Analysis pending")

	support, resistance := 180.0, 195.0
	rec := model.Recommendation{
		Verdict: model.VerdictBuy, Score: 78, Insight: "Breakout <above> range",
		Support: &support, Resistance: &resistance, Source: model.SourceHeuristic,
	}
	sim := FormatQuote(quoteEntry(true), &rec)
	assert.Contains(t, sim, "[SIMULATED]")
	assert.Contains(t, sim, "(Simulated)")
	assert.Contains(t, sim, "<b>BUY</b> 78/100 (heuristic)")
	assert.Contains(t, sim, "Breakout &lt;above&gt; range")
	assert.Contains(t, sim, "Support 180.00 | Resistance 195.00")
}

func TestFormatWatchlist(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	out := FormatWatchlist([]string{"AAPL", "TSLA"}, map[string]model.CacheEntry{"AAPL": quoteEntry(false)}, now)
	assert.Contains(t, out, "2024-05-01 09:00")
	assert.Contains(t, out, "AAPL       189.23  +0.64%")
	assert.Contains(t, out, "TSLA   --")

	assert.Contains(t, FormatWatchlist(nil, nil, now), "(empty)")
}

func TestLogSender(t *testing.T) {
	var s Sender = LogSender{}
	assert.NoError(t, s.Send(context.Background(), "hello"))
}

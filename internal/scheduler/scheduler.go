package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/ZA27101977/stocktrader/internal/coordinator"
	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/notifier"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
	"github.com/ZA27101977/stocktrader/internal/watchlist"
)

// Scheduler runs the periodic watchlist refresh and report, and serves chat commands.
type Scheduler struct {
	Cron        *cron.Cron
	Coordinator *coordinator.Coordinator
	Watchlist   *watchlist.Manager
	Notifier    notifier.Sender
	Timeframe   string        // used for refreshes and /quote without a timeframe
	RecWait     time.Duration // how long /quote waits for the recommendation
	Ctx         context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, co *coordinator.Coordinator, wl *watchlist.Manager, sender notifier.Sender, defaultTF string) *Scheduler {
	tf, err := timeframe.Parse(defaultTF)
	if err != nil {
		tf, _ = timeframe.Lookup(timeframe.OneDay)
	}
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Coordinator: co,
		Watchlist:   wl,
		Notifier:    sender,
		Timeframe:   string(tf.ID),
		RecWait:     5 * time.Second,
		Ctx:         ctx,
	}
}

// RegisterAll registers the refresh and report tasks.
func (s *Scheduler) RegisterAll(refreshCron, reportCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately.
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	symbols := s.Watchlist.List()
	log.Info().Int("symbols", len(symbols)).Str("timeframe", s.Timeframe).Msg("running refresh task")
	simulated := 0
	for _, sym := range symbols {
		if s.Ctx.Err() != nil {
			return
		}
		entry, err := s.Coordinator.Refresh(s.Ctx, sym, s.Timeframe)
		if err != nil {
			log.Error().Err(err).Str("symbol", sym).Msg("refresh failed")
			continue
		}
		if entry.Simulated {
			simulated++
		}
	}
	log.Info().Int("symbols", len(symbols)).Int("simulated", simulated).Msg("refresh task done")
}

func (s *Scheduler) reportTask() {
	log.Info().Msg("running report task")
	s.trySend(s.watchlistReport())
}

// watchlistReport resolves every watched symbol, served from cache when possible.
func (s *Scheduler) watchlistReport() string {
	symbols := s.Watchlist.List()
	entries := make(map[string]model.CacheEntry, len(symbols))
	for _, sym := range symbols {
		key := model.NewRequestKey(sym, timeframe.ID(s.Timeframe))
		if e, ok := s.Coordinator.Cache().Get(key); ok {
			entries[sym] = e
			continue
		}
		e, err := s.Coordinator.Refresh(s.Ctx, sym, s.Timeframe)
		if err != nil {
			log.Error().Err(err).Str("symbol", sym).Msg("report resolve failed")
			continue
		}
		entries[sym] = e
	}
	return notifier.FormatWatchlist(symbols, entries, time.Now())
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	name := strings.ToLower(fields[0])
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i] // "/quote@SomeBot"
	}
	args := fields[1:]

	switch name {
	case "/quote":
		if len(args) < 1 {
			return "Usage: /quote SYMBOL [1D|1W|1M|1Y]"
		}
		tf := s.Timeframe
		if len(args) > 1 {
			tf = args[1]
		}
		return s.quote(ctx, args[0], tf)
	case "/manual":
		if len(args) < 2 {
			return "Usage: /manual SYMBOL PRICE"
		}
		price, err := strconv.ParseFloat(strings.TrimPrefix(args[1], "$"), 64)
		if err != nil || price <= 0 {
			return fmt.Sprintf("Invalid price %q", args[1])
		}
		rec := s.Coordinator.ScoreManual(args[0], price)
		return fmt.Sprintf("✍️ <b>%s</b> manual %.2f\n\n%s", model.NormalizeSymbol(args[0]), price, notifier.FormatRecommendation(rec))
	case "/watchlist":
		return s.watchlistReport()
	case "/add":
		if len(args) < 1 {
			return "Usage: /add SYMBOL"
		}
		added, err := s.Watchlist.Add(args[0])
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		if !added {
			return fmt.Sprintf("%s is already on the watchlist", model.NormalizeSymbol(args[0]))
		}
		return fmt.Sprintf("⭐ added %s", model.NormalizeSymbol(args[0]))
	case "/remove":
		if len(args) < 1 {
			return "Usage: /remove SYMBOL"
		}
		removed, err := s.Watchlist.Remove(args[0])
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		if !removed {
			return fmt.Sprintf("%s is not on the watchlist", model.NormalizeSymbol(args[0]))
		}
		return fmt.Sprintf("removed %s", model.NormalizeSymbol(args[0]))
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) quote(ctx context.Context, symbol, tf string) string {
	entry, err := s.Coordinator.Resolve(ctx, symbol, tf)
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	rec, ok := s.waitRecommendation(ctx, entry.Key)
	if !ok {
		return notifier.FormatQuote(entry, nil)
	}
	return notifier.FormatQuote(entry, &rec)
}

// waitRecommendation polls for the recommendation of key until RecWait elapses.
func (s *Scheduler) waitRecommendation(ctx context.Context, key model.RequestKey) (model.Recommendation, bool) {
	deadline := time.Now().Add(s.RecWait)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if u, ok := s.Coordinator.LatestRecommendation(); ok && u.Key == key {
			return u.Recommendation, true
		}
		if time.Now().After(deadline) {
			return model.Recommendation{}, false
		}
		select {
		case <-ctx.Done():
			return model.Recommendation{}, false
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.send(text); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

func (s *Scheduler) send(text string) error {
	if tn, ok := s.Notifier.(*notifier.TelegramNotifier); ok {
		return tn.SendWithRetry(s.Ctx, text, 3)
	}
	return s.Notifier.Send(s.Ctx, text)
}

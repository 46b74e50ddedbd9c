package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ZA27101977/stocktrader/internal/advisor"
	"github.com/ZA27101977/stocktrader/internal/cache"
	"github.com/ZA27101977/stocktrader/internal/collector"
	"github.com/ZA27101977/stocktrader/internal/config"
	"github.com/ZA27101977/stocktrader/internal/coordinator"
	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/notifier"
	"github.com/ZA27101977/stocktrader/internal/scheduler"
	"github.com/ZA27101977/stocktrader/internal/strategy"
	"github.com/ZA27101977/stocktrader/internal/watchlist"
)

func main() {
	quote := flag.String("quote", "", "print a single quote report for SYMBOL and exit")
	tf := flag.String("tf", "", "timeframe for -quote (1D, 1W, 1M, 1Y)")
	manual := flag.Float64("manual", 0, "with -quote, score this manual price instead of fetching")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Init fetcher
	retry := collector.WithRetryPolicy(collector.RetryPolicy{
		MaxAttempts: cfg.Upstream.MaxAttempts,
		BaseDelay:   cfg.Upstream.BaseDelay,
	})
	var fetcher collector.Fetcher
	switch cfg.Upstream.Provider {
	case "yahoo":
		fetcher = collector.NewYahooFetcher(cfg.Upstream.BaseURL, cfg.Proxy, retry)
	default:
		if cfg.Upstream.APIKey == "" {
			log.Warn().Msg("ALPHAVANTAGE_API_KEY not set, all series will be simulated")
			break
		}
		fetcher = collector.NewAlphaVantageFetcher(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Proxy, retry)
	}
	if fetcher != nil {
		log.Info().Str("provider", fetcher.Name()).Msg("data source")
	}

	gen := collector.NewGenerator(collector.WithDefaultSeed(cfg.Synthetic.SeedPrice))
	source := collector.NewSource(fetcher, gen, cfg.Synthetic.Length)

	engine := strategy.NewEngine()
	engine.Reference, _ = strategy.ParseReference(cfg.Strategy.MomentumReference)

	adv := advisor.New(advisor.Config{
		APIKey:     cfg.Advisor.APIKey,
		BaseURL:    cfg.Advisor.BaseURL,
		Model:      cfg.Advisor.Model,
		Timeout:    cfg.Advisor.Timeout,
		MaxRetries: cfg.Advisor.MaxRetries,
	}, engine)
	log.Info().Bool("advisor", adv.Enabled()).Msg("recommendations")

	co := coordinator.New(source, cache.New(cache.WithTTL(cfg.Cache.TTL)),
		coordinator.WithRecommender(adv),
		coordinator.WithSeedPrice(cfg.Synthetic.SeedPrice),
		coordinator.WithRecommendationTimeout(cfg.Advisor.Timeout),
	)
	defer co.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *quote != "" {
		code := runQuote(ctx, co, *quote, *tf, *manual, cfg.Schedule.DefaultTimeframe)
		co.Close()
		stop()
		os.Exit(code)
	}

	wl, err := openWatchlist(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init watchlist")
	}
	defer wl.Close()

	var sender notifier.Sender = notifier.LogSender{}
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		log.Warn().Msg("telegram not configured, reports go to the log")
	}

	sched := scheduler.NewScheduler(ctx, co, wl, sender, cfg.Schedule.DefaultTimeframe)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.ReportCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, refreshing watchlist now")
		go sched.RunRefreshNow()
	}

	log.Info().Strs("watchlist", wl.List()).Msg("terminal is running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
}

func openWatchlist(cfg *config.Config) (*watchlist.Manager, error) {
	var store watchlist.Store
	switch cfg.Watchlist.Backend {
	case "sqlite":
		s, err := watchlist.NewSQLiteStore(cfg.Watchlist.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite watchlist failed, using memory")
			store = watchlist.NewMemoryStore()
		} else {
			store = s
		}
	case "memory":
		store = watchlist.NewMemoryStore()
	default:
		store = watchlist.NewFileStore(cfg.Watchlist.File)
	}
	return watchlist.NewManager(store)
}

// runQuote prints one report and waits briefly for the asynchronous recommendation.
func runQuote(ctx context.Context, co *coordinator.Coordinator, symbol, tf string, manual float64, defaultTF string) int {
	if manual > 0 {
		rec := co.ScoreManual(symbol, manual)
		fmt.Print(notifier.FormatRecommendation(rec))
		return 0
	}
	if tf == "" {
		tf = defaultTF
	}
	entry, err := co.Resolve(ctx, symbol, tf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	var rec *model.Recommendation
	timer := time.NewTimer(45 * time.Second)
	defer timer.Stop()
	for rec == nil {
		select {
		case u, ok := <-co.Updates():
			if !ok {
				return 1
			}
			if u.Key == entry.Key {
				r := u.Recommendation
				rec = &r
			}
		case <-timer.C:
			fmt.Print(notifier.FormatQuote(entry, nil))
			return 0
		case <-ctx.Done():
			return 130
		}
	}
	fmt.Print(notifier.FormatQuote(entry, rec))
	return 0
}

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/ZA27101977/stocktrader/internal/cache"
	"github.com/ZA27101977/stocktrader/internal/calculator"
	"github.com/ZA27101977/stocktrader/internal/collector"
	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/strategy"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

// ErrEmptySymbol is returned when Resolve is called without a ticker.
var ErrEmptySymbol = errors.New("empty symbol")

// Source acquires a series, live or simulated. *collector.Source implements it.
type Source interface {
	Acquire(ctx context.Context, symbol string, tf timeframe.Timeframe, seedPrice float64) collector.Result
}

// Recommender scores resolved entries and manual prices.
type Recommender interface {
	Recommend(ctx context.Context, entry model.CacheEntry) model.Recommendation
	ScoreManual(symbol string, price float64) model.Recommendation
}

// heuristic adapts the strategy engine to Recommender.
type heuristic struct{ engine *strategy.Engine }

func (h heuristic) Recommend(_ context.Context, entry model.CacheEntry) model.Recommendation {
	return h.engine.Score(entry.Key.Symbol, entry.Series)
}

func (h heuristic) ScoreManual(symbol string, price float64) model.Recommendation {
	return h.engine.ScoreManual(symbol, price)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRecommender replaces the heuristic engine.
func WithRecommender(r Recommender) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recommender = r
		}
	}
}

// WithSeedPrice sets the synthetic anchor used when no live price is cached for a symbol.
func WithSeedPrice(p float64) Option {
	return func(c *Coordinator) { c.seedPrice = p }
}

// WithRecommendationTimeout bounds each asynchronous recommendation.
func WithRecommendationTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.recTimeout = d }
}

// WithFetchTimeout bounds one shared acquisition, retries and fallback included.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.fetchTimeout = d }
}

// WithUpdateBuffer sets the capacity of the Updates channel.
func WithUpdateBuffer(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// Coordinator resolves (symbol, timeframe) requests against the cache and the upstream
// source, tracks the displayed entry and publishes recommendations as they complete.
type Coordinator struct {
	source       Source
	cache        *cache.Cache
	recommender  Recommender
	seedPrice    float64
	recTimeout   time.Duration
	fetchTimeout time.Duration
	bufferSize   int
	now          func() time.Time

	group singleflight.Group
	seq   atomic.Uint64

	mu         sync.Mutex
	lastKey    model.RequestKey
	recKey     model.RequestKey // key the recommendation slot was last issued for
	chartSeq   uint64 // latest sequence issued to the chart slot
	recSeq     uint64 // latest sequence issued to the recommendation slot
	current    *model.CacheEntry
	latestRec  *model.RecommendationUpdate
	updates    chan model.RecommendationUpdate
	closing    bool
	closed     bool
	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New creates a Coordinator. A nil cache gets a fresh one without expiry.
func New(source Source, c *cache.Cache, opts ...Option) *Coordinator {
	if c == nil {
		c = cache.New()
	}
	co := &Coordinator{
		source:       source,
		cache:        c,
		recommender:  heuristic{engine: strategy.NewEngine()},
		recTimeout:   30 * time.Second,
		fetchTimeout: 2 * time.Minute,
		bufferSize:   16,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(co)
	}
	co.updates = make(chan model.RecommendationUpdate, co.bufferSize)
	co.baseCtx, co.cancelBase = context.WithCancel(context.Background())
	return co
}

// Cache exposes the underlying cache.
func (c *Coordinator) Cache() *cache.Cache { return c.cache }

// Resolve returns the entry for (symbol, tfID), fetching it on a cache miss. Upstream
// failures never surface: the entry is simulated instead. Only an empty symbol, an unknown
// timeframe or a cancelled ctx produce an error.
func (c *Coordinator) Resolve(ctx context.Context, symbol, tfID string) (model.CacheEntry, error) {
	key, tf, err := c.key(symbol, tfID)
	if err != nil {
		return model.CacheEntry{}, err
	}
	seq := c.seq.Add(1)

	c.mu.Lock()
	repeat := key == c.lastKey && key == c.recKey
	c.lastKey = key
	c.chartSeq = seq
	c.mu.Unlock()

	if entry, ok := c.cache.Get(key); ok {
		// A repeat of the previous key keeps the recommendation already computed for it.
		c.apply(seq, entry, !repeat)
		return entry, nil
	}

	entry, err := c.load(ctx, key, tf)
	if err != nil {
		return model.CacheEntry{}, err
	}
	c.apply(seq, entry, true)
	return entry, nil
}

// Refresh bypasses the cache and replaces the entry for (symbol, tfID). If the key is on
// display, the displayed entry and its recommendation are updated too.
func (c *Coordinator) Refresh(ctx context.Context, symbol, tfID string) (model.CacheEntry, error) {
	key, tf, err := c.key(symbol, tfID)
	if err != nil {
		return model.CacheEntry{}, err
	}
	entry, err := c.load(ctx, key, tf)
	if err != nil {
		return model.CacheEntry{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.Key == key && c.lastKey == key {
		// The displayed series changed, so its recommendation is recomputed.
		c.showLocked(c.seq.Add(1), entry, true)
	}
	return entry, nil
}

// Current returns the entry of the most recently issued resolution that has completed.
func (c *Coordinator) Current() (model.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return model.CacheEntry{}, false
	}
	return c.current.Clone(), true
}

// Updates delivers recommendations for the displayed entry. It is closed by Close.
func (c *Coordinator) Updates() <-chan model.RecommendationUpdate { return c.updates }

// LatestRecommendation returns the last recommendation that was published.
func (c *Coordinator) LatestRecommendation() (model.RecommendationUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latestRec == nil {
		return model.RecommendationUpdate{}, false
	}
	return *c.latestRec, true
}

// ScoreManual scores a manually entered price and publishes it, superseding any
// recommendation still being computed.
func (c *Coordinator) ScoreManual(symbol string, price float64) model.Recommendation {
	seq := c.seq.Add(1)
	rec := c.recommender.ScoreManual(symbol, price)
	key := model.RequestKey{Symbol: model.NormalizeSymbol(symbol)}

	c.mu.Lock()
	c.recSeq = seq
	c.recKey = key
	c.publishLocked(model.RecommendationUpdate{Key: key, Seq: seq, Recommendation: rec})
	c.mu.Unlock()
	return rec
}

// Close cancels pending recommendations, waits for them and closes Updates.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		c.mu.Unlock()
		c.cancelBase()
		c.wg.Wait()
		c.mu.Lock()
		c.closed = true
		close(c.updates)
		c.mu.Unlock()
	})
}

func (c *Coordinator) key(symbol, tfID string) (model.RequestKey, timeframe.Timeframe, error) {
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return model.RequestKey{}, timeframe.Timeframe{}, ErrEmptySymbol
	}
	tf, err := timeframe.Parse(tfID)
	if err != nil {
		return model.RequestKey{}, timeframe.Timeframe{}, err
	}
	return model.RequestKey{Symbol: symbol, Timeframe: tf.ID}, tf, nil
}

// load acquires and caches one entry. Concurrent loads of a key share one acquisition,
// which runs detached from every caller and is only cut short by Close or the fetch
// timeout. A caller whose ctx ends stops waiting without affecting the others.
func (c *Coordinator) load(ctx context.Context, key model.RequestKey, tf timeframe.Timeframe) (model.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.CacheEntry{}, fmt.Errorf("resolve %s: %w", key, err)
	}
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		var cancel context.CancelFunc
		if c.fetchTimeout > 0 {
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.fetchTimeout)
		} else {
			fetchCtx, cancel = context.WithCancel(fetchCtx)
		}
		defer cancel()
		stop := context.AfterFunc(c.baseCtx, cancel)
		defer stop()

		seed := c.seedPrice
		if p, ok := c.cache.LastLivePrice(key.Symbol); ok {
			seed = p
		}
		res := c.source.Acquire(fetchCtx, key.Symbol, tf, seed)
		if err := c.baseCtx.Err(); err != nil {
			return nil, fmt.Errorf("resolve %s: coordinator closed: %w", key, err)
		}

		entry := model.CacheEntry{
			Key:        key,
			Series:     res.Bars(),
			Stats:      calculator.DeriveStats(res.Bars()),
			InsertedAt: c.now(),
		}
		switch r := res.(type) {
		case collector.LiveResult:
			entry.Source = r.Provider
		case collector.SimulatedResult:
			entry.Simulated = true
			entry.Source = collector.SourceSynthetic
		}
		c.cache.Put(entry)

		log.Info().
			Str("symbol", key.Symbol).
			Str("timeframe", string(key.Timeframe)).
			Str("source", entry.Source).
			Int("bars", len(entry.Series)).
			Float64("price", entry.Stats.Price).
			Msg("resolved")
		return entry, nil
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return model.CacheEntry{}, fmt.Errorf("resolve %s: %w", key, ctx.Err())
	}
	if r.Err != nil {
		return model.CacheEntry{}, r.Err
	}
	entry := r.Val.(model.CacheEntry)
	if r.Shared {
		entry = entry.Clone()
	}
	return entry, nil
}

// apply makes entry current if seq is still the latest chart request and optionally starts
// the recommendation for it. Stale completions are left in the cache only.
func (c *Coordinator) apply(seq uint64, entry model.CacheEntry, recommend bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.chartSeq {
		log.Debug().
			Str("key", entry.Key.String()).
			Uint64("seq", seq).
			Uint64("latest", c.chartSeq).
			Msg("discarding stale resolution")
		return
	}
	c.showLocked(seq, entry, recommend)
}

// showLocked displays entry and, when asked, starts its recommendation under seq.
func (c *Coordinator) showLocked(seq uint64, entry model.CacheEntry, recommend bool) {
	cp := entry.Clone()
	c.current = &cp
	if !recommend || c.closing {
		return
	}
	c.recSeq = seq
	c.recKey = entry.Key
	c.wg.Add(1)
	go c.recommend(seq, entry.Clone())
}

func (c *Coordinator) recommend(seq uint64, entry model.CacheEntry) {
	defer c.wg.Done()
	ctx := c.baseCtx
	if c.recTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.recTimeout)
		defer cancel()
	}
	rec := c.recommender.Recommend(ctx, entry)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.recSeq {
		return
	}
	c.publishLocked(model.RecommendationUpdate{Key: entry.Key, Seq: seq, Recommendation: rec})
}

// publishLocked records u and queues it, dropping the oldest queued update when full.
func (c *Coordinator) publishLocked(u model.RecommendationUpdate) {
	c.latestRec = &u
	if c.closed {
		return
	}
	select {
	case c.updates <- u:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- u:
	default:
	}
}

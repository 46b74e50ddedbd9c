package collector

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

const (
	DefaultSyntheticLength = 100
	DefaultSeedPrice       = 150.0

	openDrift  = 0.01
	closeDrift = 0.008
	wickMargin = 0.003
)

// RandSource yields uniform values in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Generator produces random-walk OHLC series used when live data is unavailable.
type Generator struct {
	mu          sync.Mutex
	rnd         RandSource
	now         func() time.Time
	defaultSeed float64
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRandSource injects the random source, typically a seeded *rand.Rand in tests.
func WithRandSource(src RandSource) GeneratorOption {
	return func(g *Generator) {
		if src != nil {
			g.rnd = src
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithDefaultSeed sets the price used when Generate is called without a usable seed.
func WithDefaultSeed(price float64) GeneratorOption {
	return func(g *Generator) {
		if price > 0 {
			g.defaultSeed = price
		}
	}
}

// NewGenerator creates a Generator seeded from the wall clock unless a source is injected.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rnd:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		now:         time.Now,
		defaultSeed: DefaultSeedPrice,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns length bars of a bounded random walk anchored at seedPrice. The last bar
// falls on the current bucket and earlier bars are spaced by the timeframe's bucket size.
// It never fails.
func (g *Generator) Generate(seedPrice float64, tf timeframe.Timeframe, length int) model.Series {
	if length <= 0 {
		length = DefaultSyntheticLength
	}
	if seedPrice <= 0 || math.IsNaN(seedPrice) || math.IsInf(seedPrice, 0) {
		seedPrice = g.defaultSeed
	}
	bucket := tf.Bucket
	if bucket <= 0 {
		bucket = 24 * time.Hour
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	end := g.now().UTC().Truncate(bucket)
	series := make(model.Series, length)
	p := seedPrice
	for i := 0; i < length; i++ {
		open := p + g.jitter()*openDrift*p
		closePrice := open + g.jitter()*closeDrift*p
		margin := p * wickMargin
		series[i] = model.Bar{
			Time:  end.Add(-time.Duration(length-1-i) * bucket),
			Open:  open,
			High:  math.Max(open, closePrice) + margin,
			Low:   math.Min(open, closePrice) - margin,
			Close: closePrice,
		}
		p = closePrice
	}
	return series
}

// jitter maps the source onto [-1, 1).
func (g *Generator) jitter() float64 {
	return g.rnd.Float64()*2 - 1
}

package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/ZA27101977/stocktrader/internal/model"
)

// Cache is the process-wide store of resolved entries keyed by (symbol, timeframe).
// Entries are cloned on Put and Get so callers never share series memory with it.
type Cache struct {
	mu      sync.RWMutex
	entries map[model.RequestKey]model.CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires entries older than ttl. Zero keeps entries for the life of the process.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[model.RequestKey]model.CacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the entry for key.
func (c *Cache) Get(key model.RequestKey) (model.CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.expired(entry) {
		return model.CacheEntry{}, false
	}
	return entry.Clone(), true
}

// Put stores a copy of entry under entry.Key, replacing any previous value. A zero
// InsertedAt is stamped with the current time.
func (c *Cache) Put(entry model.CacheEntry) {
	entry = entry.Clone()
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = c.now()
	}
	c.mu.Lock()
	c.entries[entry.Key] = entry
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache) Delete(key model.RequestKey) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return len(c.Keys())
}

// Keys returns the live keys sorted by symbol, then timeframe.
func (c *Cache) Keys() []model.RequestKey {
	c.mu.RLock()
	keys := make([]model.RequestKey, 0, len(c.entries))
	for k, e := range c.entries {
		if !c.expired(e) {
			keys = append(keys, k)
		}
	}
	c.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Timeframe < keys[j].Timeframe
	})
	return keys
}

// LastLivePrice returns the most recent close among the symbol's live entries.
// It is used to anchor synthetic series near a known price.
func (c *Cache) LastLivePrice(symbol string) (float64, bool) {
	symbol = model.NormalizeSymbol(symbol)
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		price  float64
		latest time.Time
		found  bool
	)
	for k, e := range c.entries {
		if k.Symbol != symbol || e.Simulated || c.expired(e) {
			continue
		}
		last, ok := e.Series.Last()
		if !ok {
			continue
		}
		if !found || last.Time.After(latest) {
			price, latest, found = last.Close, last.Time, true
		}
	}
	return price, found
}

func (c *Cache) expired(e model.CacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.InsertedAt) > c.ttl
}

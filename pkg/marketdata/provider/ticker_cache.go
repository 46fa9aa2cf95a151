package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/moth-trading/internal/types"
)

// DefaultTickerTTL is how long a cached ticker is served before it is refetched.
const DefaultTickerTTL = 5 * time.Second

type cachedTicker struct {
	ticker    types.Ticker
	fetchedAt time.Time
}

// TickerCache is a Provider that serves tickers from memory for ttl after they
// were fetched. Klines and order books pass straight through.
type TickerCache struct {
	Provider

	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	tickers map[string]cachedTicker
}

// NewTickerCache wraps provider. A non-positive ttl falls back to DefaultTickerTTL.
func NewTickerCache(provider Provider, ttl time.Duration) *TickerCache {
	if ttl <= 0 {
		ttl = DefaultTickerTTL
	}

	return &TickerCache{
		Provider: provider,
		ttl:      ttl,
		now:      time.Now,
		tickers:  make(map[string]cachedTicker),
	}
}

// WithClock replaces the clock used to age entries.
func (c *TickerCache) WithClock(now func() time.Time) *TickerCache {
	c.now = now

	return c
}

func (c *TickerCache) Ticker(ctx context.Context, symbol string) (types.Ticker, error) {
	c.mu.Lock()
	entry, ok := c.tickers[symbol]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.ticker, nil
	}

	ticker, err := c.Provider.Ticker(ctx, symbol)
	if err != nil {
		return types.Ticker{}, err
	}

	c.mu.Lock()
	c.tickers[symbol] = cachedTicker{ticker: ticker, fetchedAt: c.now()}
	c.mu.Unlock()

	return ticker, nil
}

// Invalidate drops the cached ticker of symbol.
func (c *TickerCache) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tickers, symbol)
}

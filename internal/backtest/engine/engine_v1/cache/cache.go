package cache

import (
	"sync"

	"github.com/rxtech-lab/moth-trading/internal/types"
)

type Cache interface {
	Reset()
}

type entry struct {
	once sync.Once
	rows []types.IndicatorRow
}

// IndicatorCache memoizes augmented series so that sweep runs sharing a data
// file and indicator settings compute the indicators once. It is safe for
// concurrent use; concurrent callers of one key wait for a single computation.
type IndicatorCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	hits    int
	misses  int
}

func NewIndicatorCache() *IndicatorCache {
	return &IndicatorCache{
		entries: make(map[string]*entry),
	}
}

// GetOrCompute returns the rows cached under key, calling compute on the first request.
// Callers must treat the returned rows as read-only.
func (c *IndicatorCache) GetOrCompute(key string, compute func() []types.IndicatorRow) []types.IndicatorRow {
	c.mu.Lock()

	e, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
		e = &entry{}
		c.entries[key] = e
	}

	c.mu.Unlock()

	e.once.Do(func() {
		e.rows = compute()
	})

	return e.rows
}

// Stats returns the number of cache hits and misses since the last Reset.
func (c *IndicatorCache) Stats() (hits int, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hits, c.misses
}

// Len returns the number of cached series.
func (c *IndicatorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Reset implements cache.Cache.
func (c *IndicatorCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
}

package dividend

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// CacheEntry is one read of the per-share cache. Generation counts the
// invalidations of the year seen so far; a value computed after the read is
// stored only while the generation is unchanged.
type CacheEntry struct {
	PerShare   decimal.Decimal
	Found      bool
	Generation int64
}

// PerShareCache stores computed per-share values keyed by year.
// Entries never expire on their own; they are removed by Invalidate.
type PerShareCache interface {
	Get(ctx context.Context, year int) (CacheEntry, error)
	// Set stores perShare if the year was not invalidated since the read
	// that returned generation. It reports whether the value was stored.
	Set(ctx context.Context, year int, generation int64, perShare decimal.Decimal) (bool, error)
	// Invalidate drops the value and advances the year's generation.
	Invalidate(ctx context.Context, year int) error
}

// MemoryCache is a process-wide PerShareCache.
type MemoryCache struct {
	mu          sync.RWMutex
	values      map[int]decimal.Decimal
	generations map[int]int64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		values:      make(map[int]decimal.Decimal),
		generations: make(map[int]int64),
	}
}

func (c *MemoryCache) Get(_ context.Context, year int) (CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[year]
	return CacheEntry{PerShare: v, Found: ok, Generation: c.generations[year]}, nil
}

func (c *MemoryCache) Set(_ context.Context, year int, generation int64, perShare decimal.Decimal) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[year] != generation {
		return false, nil
	}
	c.values[year] = perShare
	return true, nil
}

func (c *MemoryCache) Invalidate(_ context.Context, year int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, year)
	c.generations[year]++
	return nil
}

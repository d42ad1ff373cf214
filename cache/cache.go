package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adamspd/DesignQuizBot/utils"
	"golang.org/x/sync/singleflight"
)

// LoadFunc computes the value for a missing or expired key.
type LoadFunc[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a read-through memo with a fixed TTL.
//
// Every key carries a generation. Invalidate and Clear bump it, and a load
// only stores its result if the generation it started under is still current,
// so a reader racing a writer can never park a pre-write snapshot in the slot.
type Cache[K comparable, V any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[K]entry[V]
	gens    map[K]uint64
	epoch   uint64

	group singleflight.Group
}

// New creates a cache. name only appears in logs.
func New[K comparable, V any](name string, ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		name:    name,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]entry[V]),
		gens:    make(map[K]uint64),
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Cache[K, V]) WithClock(now func() time.Time) *Cache[K, V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Peek returns the cached value if it is still fresh, without loading.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Get returns the fresh cached value for key or calls load and stores the
// result. Concurrent misses for the same key and generation share one load.
// Load errors are returned and never cached.
func (c *Cache[K, V]) Get(ctx context.Context, key K, load LoadFunc[V]) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.storedAt) < c.ttl {
		c.mu.Unlock()
		return e.value, nil
	}
	gen := c.generation(key)
	c.mu.Unlock()

	flightKey := fmt.Sprintf("%v#%d", key, gen)
	v, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}

		c.mu.Lock()
		if c.generation(key) == gen {
			c.entries[key] = entry[V]{value: value, storedAt: c.now()}
		} else {
			utils.LogDebug("cache %s: dropped stale load for %v", c.name, key)
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	value, _ := v.(V)
	return value, nil
}

// Set stores value for key with a fresh timestamp.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// Invalidate evicts key and fences off loads that started before the call.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.gens[key]++
}

// InvalidateFunc evicts every cached key for which match returns true.
func (c *Cache[K, V]) InvalidateFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			c.gens[k]++
			n++
		}
	}
	return n
}

// Clear evicts everything. In-flight loads for any key are discarded.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
	c.gens = make(map[K]uint64)
	c.epoch++
}

// Sweep evicts entries older than the TTL and returns how many were removed.
func (c *Cache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	// Generation counters are dropped once the cache is empty. The epoch bump
	// keeps any load still in flight from storing.
	if len(c.entries) == 0 && len(c.gens) > 0 {
		c.gens = make(map[K]uint64)
		c.epoch++
	}
	if removed > 0 {
		utils.LogDebug("cache %s: swept %d expired entries", c.name, removed)
	}
	return removed
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run sweeps every interval until ctx is done.
func (c *Cache[K, V]) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = c.ttl
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.LogShutdown("cache %s: sweeper stopped", c.name)
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// generation must be called with mu held. The epoch is folded in so that
// Clear invalidates loads for keys it never saw.
func (c *Cache[K, V]) generation(key K) uint64 {
	return c.epoch<<32 | c.gens[key]
}

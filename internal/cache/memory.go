package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Memory implements an in-memory cache guarded by a single mutex. Expiration
// is checked on read: a stale entry behaves as a miss and is discarded on the
// spot. There is no background sweeper; the expected working set is small
// (one entry per distinct request within the TTL window).
type Memory struct {
	mu   sync.Mutex
	data map[string]*memoryEntry

	defaultTTL  time.Duration
	maxItemSize int

	// now is injectable for TTL tests.
	now func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
}

// MemoryConfig holds configuration for Memory.
type MemoryConfig struct {
	DefaultTTL  time.Duration // Default TTL (default: 5 minutes)
	MaxItemSize int           // Maximum size per item in bytes (default: 1MB)
}

// DefaultMemoryConfig returns sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		DefaultTTL:  5 * time.Minute,
		MaxItemSize: 1024 * 1024,
	}
}

// NewMemory creates a new in-memory cache.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxItemSize <= 0 {
		cfg.MaxItemSize = 1024 * 1024
	}
	return &Memory{
		data:        make(map[string]*memoryEntry),
		defaultTTL:  cfg.DefaultTTL,
		maxItemSize: cfg.MaxItemSize,
		now:         time.Now,
	}
}

// Get retrieves a value from the cache. An expired entry counts as a miss and
// is deleted before returning.
func (c *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		c.misses.Add(1)
		return nil, nil
	}

	if c.now().Sub(entry.createdAt) >= entry.ttl {
		delete(c.data, key)
		c.misses.Add(1)
		return nil, nil
	}

	c.hits.Add(1)
	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Set stores a value, always overwriting. Oversized items are silently
// skipped.
func (c *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if len(value) > c.maxItemSize {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &memoryEntry{
		value:     valueCopy,
		createdAt: c.now(),
		ttl:       ttl,
	}
	c.sets.Add(1)
	return nil
}

// Delete removes a key from the cache.
func (c *Memory) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Flush removes all entries.
func (c *Memory) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*memoryEntry)
	return nil
}

// Ping always returns nil for the memory cache.
func (c *Memory) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the memory cache.
func (c *Memory) Close() error {
	return nil
}

// Len returns the number of entries, including any not yet discarded stale
// ones.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Stats returns cache statistics.
func (c *Memory) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		HitRate: hitRate,
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *Memory) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

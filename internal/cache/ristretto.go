package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Options sizes a RistrettoCache.
type Options struct {
	MaxSizeMB  int64
	MaxEntries int64
	DefaultTTL time.Duration
}

// RistrettoCache is a cost-bounded cache where each entry costs its byte
// length. Expiry is handled by ristretto itself.
type RistrettoCache struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

// New builds a RistrettoCache. NumCounters is kept at ~10x the entry limit
// as ristretto recommends.
func New(opts Options) (*RistrettoCache, error) {
	if opts.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("cache: max size must be positive, got %d MB", opts.MaxSizeMB)
	}
	numCounters := opts.MaxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        numCounters,
		MaxCost:            opts.MaxSizeMB * 1024 * 1024,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	return &RistrettoCache{cache: c, defaultTTL: opts.DefaultTTL}, nil
}

func (c *RistrettoCache) Get(key string) ([]byte, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	if !ok {
		c.cache.Del(key)
		return nil, false
	}
	return data, true
}

func (c *RistrettoCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	// A rejected Set is fine; the next request recomputes.
	_ = c.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	c.cache.Wait()
}

func (c *RistrettoCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *RistrettoCache) Clear() {
	c.cache.Clear()
}

func (c *RistrettoCache) Stats() Stats {
	m := c.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close stops ristretto's background goroutines.
func (c *RistrettoCache) Close() {
	c.cache.Close()
}

package gaps

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	defaultNumCounters = 1e6
	defaultMaxCost     = 1 << 26 // 64MB
	defaultBufferItems = 64
	defaultTTL         = 5 * time.Minute
)

// ResultCache is an explicit, injectable cache for gap-analysis results,
// keyed by snapshot fingerprint. Bounded size and TTL replace the ad-hoc
// process-wide dictionary the analysis would otherwise accumulate.
type ResultCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// CacheConfig bounds the result cache.
type CacheConfig struct {
	MaxCost int64
	TTL     time.Duration
}

// NewResultCache creates a bounded TTL cache.
func NewResultCache(cfg CacheConfig) (*ResultCache, error) {
	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = defaultMaxCost
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     maxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &ResultCache{cache: cache, ttl: ttl}, nil
}

// Get returns a cached gap list for a fingerprint.
func (c *ResultCache) Get(key string) ([]Gap, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	gaps, ok := v.([]Gap)
	return gaps, ok
}

// Set stores a gap list. Cost is the gap count; ristretto's admission
// policy may decline the write under pressure.
func (c *ResultCache) Set(key string, gaps []Gap) {
	cost := int64(len(gaps))
	if cost == 0 {
		cost = 1
	}
	c.cache.SetWithTTL(key, gaps, cost, c.ttl)
}

// Wait flushes pending writes; used by tests that read back immediately.
func (c *ResultCache) Wait() {
	c.cache.Wait()
}

// Close releases cache resources.
func (c *ResultCache) Close() {
	c.cache.Close()
}

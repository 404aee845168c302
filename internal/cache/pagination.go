// internal/cache/pagination.go
package cache

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config for the pagination count cache
type Config struct {
	TTL             time.Duration // Expire-after-write, never refreshed on read
	CleanupInterval time.Duration // How often expired entries are purged
}

// DefaultConfig returns a one minute TTL
func DefaultConfig() Config {
	return Config{
		TTL:             time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Key identifies one cached count. Counts are actor specific because
// sharing restricts what each actor can see.
type Key struct {
	Actor    string
	Type     string
	Filters  []string
	Junction string
}

// String renders actor.type.filters.junction with filters sorted so that
// equivalent requests share an entry.
func (k Key) String() string {
	filters := append([]string(nil), k.Filters...)
	sort.Strings(filters)
	return strings.Join([]string{k.Actor, k.Type, strings.Join(filters, "|"), k.Junction}, ".")
}

// Stats are cumulative cache counters
type Stats struct {
	Hits     uint64
	Misses   uint64
	Computes uint64
}

// PaginationCache memoizes total counts of filtered listings. Concurrent
// misses for the same key share one computation.
type PaginationCache struct {
	entries *gocache.Cache
	group   singleflight.Group
	ttl     time.Duration
	logger  *zap.Logger

	hits     atomic.Uint64
	misses   atomic.Uint64
	computes atomic.Uint64
}

// NewPaginationCache creates a cache with the configured TTL
func NewPaginationCache(cfg Config, logger *zap.Logger) *PaginationCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &PaginationCache{
		entries: gocache.New(cfg.TTL, cfg.CleanupInterval),
		ttl:     cfg.TTL,
		logger:  logger,
	}
}

// GetOrCompute returns the cached count for key or computes and stores it.
// Errors are not cached.
func (c *PaginationCache) GetOrCompute(ctx context.Context, key Key, compute func(ctx context.Context) (int, error)) (int, error) {
	k := key.String()
	if v, ok := c.entries.Get(k); ok {
		c.hits.Add(1)
		return v.(int), nil
	}
	c.misses.Add(1)

	v, err, shared := c.group.Do(k, func() (interface{}, error) {
		// A flight that started after another one finished finds its result here.
		if v, ok := c.entries.Get(k); ok {
			return v.(int), nil
		}
		c.computes.Add(1)
		// the flight outlives the caller that started it
		n, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return 0, err
		}
		c.entries.Set(k, n, c.ttl)
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	if shared {
		c.logger.Debug("shared pagination count", zap.String("key", k))
	}
	return v.(int), nil
}

// Len returns the number of live entries
func (c *PaginationCache) Len() int {
	return c.entries.ItemCount()
}

// Stats returns cumulative counters
func (c *PaginationCache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
	}
}

// Package ratelimit throttles API requests with one token bucket per caller
// and operation.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxKeys bounds the limiter table. The table is cleared when it fills up.
const maxKeys = 10000

// OperationConfig defines limits for an operation
type OperationConfig struct {
	RatePerSecond float64
	Burst         int
}

// Info describes the bucket state after a request was counted.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter keeps a token bucket per caller key and operation. Operations
// without their own limit share the default bucket of the caller.
type Limiter struct {
	mu       sync.Mutex
	defaults OperationConfig
	limits   map[string]OperationConfig
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

func New(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{
		defaults: OperationConfig{RatePerSecond: ratePerSecond, Burst: burst},
		limits:   make(map[string]OperationConfig),
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// SetDefault changes the default limit. Existing buckets are dropped.
func (l *Limiter) SetDefault(ratePerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defaults = OperationConfig{RatePerSecond: ratePerSecond, Burst: burst}
	l.limiters = make(map[string]*rate.Limiter)
}

// SetLimit configures a separate budget for an operation such as a bulk
// import.
func (l *Limiter) SetLimit(operation string, ratePerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[operation] = OperationConfig{RatePerSecond: ratePerSecond, Burst: burst}
	for key := range l.limiters {
		delete(l.limiters, key)
	}
}

// Allow counts one request of key for operation.
func (l *Limiter) Allow(key, operation string) Info {
	l.mu.Lock()
	cfg, ok := l.limits[operation]
	bucket := key
	if ok {
		bucket = key + ":" + operation
	} else {
		cfg = l.defaults
	}
	if len(l.limiters) >= maxKeys {
		l.limiters = make(map[string]*rate.Limiter)
	}
	limiter, exists := l.limiters[bucket]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
		l.limiters[bucket] = limiter
	}
	l.mu.Unlock()

	now := l.now()
	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)

	info := Info{
		Allowed:   allowed,
		Limit:     cfg.Burst,
		Remaining: max(int(math.Floor(tokens)), 0),
		Reset:     now,
	}
	if tokens < 1 && cfg.RatePerSecond > 0 {
		wait := time.Duration((1 - tokens) / cfg.RatePerSecond * float64(time.Second))
		info.Reset = now.Add(wait)
		if !allowed {
			info.RetryAfter = wait
		}
	}
	return info
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

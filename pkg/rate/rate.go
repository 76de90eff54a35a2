// Package rate supplies the fiat price of one crypto unit.
package rate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidRate is returned for non-positive prices.
var ErrInvalidRate = errors.New("conversion rate must be positive")

// Provider returns the current conversion rate.
type Provider interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// Fixed is a constant rate.
type Fixed decimal.Decimal

// NewFixed validates r.
func NewFixed(r decimal.Decimal) (Fixed, error) {
	if !r.IsPositive() {
		return Fixed{}, ErrInvalidRate
	}
	return Fixed(r), nil
}

// Rate implements Provider.
func (f Fixed) Rate(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}

// Cache stores the last fetched rate.
type Cache interface {
	// Get returns ok=false on a miss or an expired entry.
	Get(ctx context.Context) (decimal.Decimal, bool, error)
	Set(ctx context.Context, r decimal.Decimal, ttl time.Duration) error
}

// Cached wraps a slow provider. Concurrent misses share one fetch.
type Cached struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewCached decorates next with cache.
func NewCached(next Provider, cache Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "rate-cache"),
	}
}

// Rate implements Provider. Cache errors are logged and fall through to
// the wrapped provider.
func (c *Cached) Rate(ctx context.Context) (decimal.Decimal, error) {
	if r, ok, err := c.cache.Get(ctx); err != nil {
		c.logger.Warn("rate cache read failed", "error", err)
	} else if ok {
		return r, nil
	}

	v, err, _ := c.group.Do("rate", func() (any, error) {
		r, err := c.next.Rate(ctx)
		if err != nil {
			return nil, err
		}
		if !r.IsPositive() {
			return nil, ErrInvalidRate
		}
		if err := c.cache.Set(ctx, r, c.ttl); err != nil {
			c.logger.Warn("rate cache write failed", "error", err)
		}
		return r, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.(decimal.Decimal), nil
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.RWMutex
	rate    decimal.Decimal
	expires time.Time
	now     func() time.Time
}

// NewMemory returns an empty cache.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Get implements Cache.
func (m *Memory) Get(context.Context) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expires.IsZero() || !m.now().Before(m.expires) {
		return decimal.Decimal{}, false, nil
	}
	return m.rate, true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, r decimal.Decimal, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = r
	m.expires = m.now().Add(ttl)
	return nil
}

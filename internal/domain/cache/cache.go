// Package cache is the time-boxed in-memory store for datasets and data
// packages. Entries expire passively: an entry older than the TTL reads as
// a miss but stays in the map until it is overwritten or invalidated.
package cache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/schoolboard/pkg/metrics"
)

// DefaultTTL is the validity window when none is configured.
const DefaultTTL = 30 * time.Minute

type entry struct {
	value    any
	storedAt time.Time
}

// Cache maps fixed logical keys to values with a shared TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	flight  singleflight.Group
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the validity window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the value stored under key if it is still valid. Never-set
// and expired keys are both reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		metrics.RecordCacheMiss(Kind(key))
		return nil, false
	}
	metrics.RecordCacheHit(Kind(key))
	return e.value, true
}

// Set stores value under key stamped with the current time.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.UpdateCacheEntries(n)
}

// Invalidate drops the named keys, or everything when no key is given.
// It returns how many entries were removed.
func (c *Cache) Invalidate(keys ...string) int {
	c.mu.Lock()
	removed := 0
	if len(keys) == 0 {
		removed = len(c.entries)
		c.entries = make(map[string]entry)
	} else {
		for _, k := range keys {
			if _, ok := c.entries[k]; ok {
				delete(c.entries, k)
				removed++
			}
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	metrics.RecordCacheInvalidation()
	metrics.UpdateCacheEntries(n)
	return removed
}

// InvalidatePrefix drops every key starting with prefix.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.RLock()
	var keys []string
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	c.mu.RUnlock()
	if len(keys) == 0 {
		return 0
	}
	return c.Invalidate(keys...)
}

// Len counts stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EntryInfo describes one stored entry.
type EntryInfo struct {
	Key   string        `json:"key"`
	Age   time.Duration `json:"age"`
	Valid bool          `json:"valid"`
}

// Entries lists stored entries sorted by key.
func (c *Cache) Entries() []EntryInfo {
	now := c.now()
	c.mu.RLock()
	out := make([]EntryInfo, 0, len(c.entries))
	for k, e := range c.entries {
		age := now.Sub(e.storedAt)
		out = append(out, EntryInfo{Key: k, Age: age, Valid: age < c.ttl})
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// maxFlightRetries bounds how often a caller whose shared flight failed with
// the leader's context error runs the flight again.
const maxFlightRetries = 3

// Do returns the valid value for key or computes it with fn. Concurrent
// callers for the same key share one fn call. Errors are returned and not
// stored. A caller whose own ctx is still live does not inherit another
// caller's cancellation: the flight is run again on its behalf. The bool
// reports whether the value came from the cache.
func (c *Cache) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	for attempt := 0; ; attempt++ {
		v, err, shared := c.flight.Do(key, func() (any, error) {
			if v, ok := c.peek(key); ok {
				return v, nil
			}
			v, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			c.Set(key, v)
			return v, nil
		})
		if err != nil && shared && ctx.Err() == nil && isContextErr(err) && attempt < maxFlightRetries {
			continue
		}
		return v, false, err
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// peek is Get without metrics, for the re-check inside a flight.
func (c *Cache) peek(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// Load is a typed Get.
func Load[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Fetch is a typed Do.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	v, hit, err := c.Do(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, false, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, false, ErrTypeMismatch
	}
	return t, hit, nil
}

// Kind is the metric label for a key: the part before the first colon.
func Kind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

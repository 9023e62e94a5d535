// Package cache memoises distinct-value lookups per permission scope.
package cache

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/sample-labeler/internal/model"
)

// Key identifies a cached lookup. A nil Scope marks a value shared by every
// user.
type Key struct {
	Name  string
	Args  []string
	Scope *model.Scope
}

func (k Key) scopeKey() string {
	if k.Scope == nil {
		return "-"
	}
	return k.Scope.Key()
}

// String returns the canonical cache key.
func (k Key) String() string {
	args, _ := json.Marshal(k.Args)
	return k.Name + "|" + string(args) + "|" + k.scopeKey()
}

type entry struct {
	value    []string
	scopeKey string
	expires  time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int     `json:"entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	Generation uint64  `json:"generation"`
}

// Option configures an OptionCache.
type Option func(*OptionCache)

// WithObserver registers fn to be told about every hit (true) or miss (false).
func WithObserver(fn func(hit bool)) Option {
	return func(c *OptionCache) { c.observe = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *OptionCache) { c.now = now }
}

// OptionCache is a concurrent-safe TTL cache for option lists. Every
// invalidation bumps a generation counter; a load that started under an
// older generation returns its value but never stores it.
type OptionCache struct {
	mu      sync.Mutex
	entries map[string]entry
	gen     uint64
	ttl     time.Duration
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
	observe func(hit bool)
	now     func() time.Time
}

// New creates an OptionCache whose entries live for ttl.
func New(ttl time.Duration, opts ...Option) *OptionCache {
	c := &OptionCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		observe: func(bool) {},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns the cached value for key or calls load to produce it.
// Concurrent misses on the same key share a single load.
func (c *OptionCache) GetOrLoad(ctx context.Context, key Key, load func(context.Context) ([]string, error)) ([]string, error) {
	k := key.String()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		if c.now().Before(e.expires) {
			c.mu.Unlock()
			c.hits.Add(1)
			c.observe(true)
			return slices.Clone(e.value), nil
		}
		delete(c.entries, k)
	}
	gen := c.gen
	c.mu.Unlock()

	c.misses.Add(1)
	c.observe(false)

	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10)+"#"+k, func() (any, error) {
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries[k] = entry{value: val, scopeKey: key.scopeKey(), expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

// InvalidateAll drops every entry.
func (c *OptionCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.gen++
}

// InvalidateScope drops the entries computed for scope.
func (c *OptionCache) InvalidateScope(scope model.Scope) {
	sk := scope.Key()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.scopeKey == sk {
			delete(c.entries, k)
		}
	}
	c.gen++
}

// Stats returns cache performance statistics.
func (c *OptionCache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	gen := c.gen
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
		Generation: gen,
	}
}

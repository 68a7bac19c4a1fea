// Package cache tracks freshness of server-derived collections and
// refreshes them into the session stores.
//
// Each registered Key has a Definition that knows how to fetch the
// collection and apply it. Fetched values are held in a bounded LRU;
// a key whose value was evicted is simply stale again. Concurrent
// refreshes of one key are collapsed into a single request.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/homesync/internal/metrics"
)

// Feature names used as the first half of a Key.
const (
	FeatureNotifications = "notifications"
	FeatureHouseholds    = "households"
	FeatureMembers       = "members"
	FeatureMessages      = "messages"
)

// Key identifies one cached collection: a feature plus an optional
// scope such as a household ID.
type Key struct {
	Feature string
	Scope   string
}

func (k Key) String() string {
	if k.Scope == "" {
		return k.Feature
	}
	return k.Feature + ":" + k.Scope
}

// Definition describes how a key is fetched and kept fresh.
type Definition struct {
	// StaleAfter is the window after which a background refresh is due.
	StaleAfter time.Duration

	// PushCovered keys are kept current by the push transport, so
	// periodic refresh is skipped while it is connected.
	PushCovered bool

	// Fetch loads the collection from the backend.
	Fetch func(ctx context.Context) (any, error)

	// Apply publishes a fetched value, typically by dispatching a
	// set-collection action.
	Apply func(v any)
}

type entry struct {
	value     any
	fetchedAt time.Time
	invalid   bool
}

// Cache is safe for concurrent use.
type Cache struct {
	mu            sync.Mutex
	defs          map[Key]Definition
	entries       *lru.Cache[Key, entry]
	pushConnected bool

	group        singleflight.Group
	fetchTimeout time.Duration
	now          func() time.Time
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithFetchTimeout bounds a single shared fetch. The default is 30s.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithMetrics records refresh outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the cache logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New creates a cache holding at most size fetched values.
func New(size int, opts ...Option) (*Cache, error) {
	entries, err := lru.New[Key, entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	c := &Cache{
		defs:    make(map[Key]Definition),
		entries:      entries,
		fetchTimeout: 30 * time.Second,
		now:          time.Now,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Register adds or replaces the definition of k. Any cached value is
// dropped.
func (c *Cache) Register(k Key, def Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[k] = def
	c.entries.Remove(k)
}

// Forget removes k and its value.
func (c *Cache) Forget(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.defs, k)
	c.entries.Remove(k)
}

// Keys returns the registered keys in a stable order.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.defs))
	for k := range c.defs {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Get returns the cached value of k, refreshing it first if it is
// missing, stale or invalidated.
func (c *Cache) Get(ctx context.Context, k Key) (any, error) {
	c.mu.Lock()
	def, ok := c.defs[k]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("cache key %s is not registered", k)
	}
	e, found := c.entries.Get(k)
	fresh := found && !e.invalid && c.now().Sub(e.fetchedAt) < def.StaleAfter
	c.mu.Unlock()

	if fresh {
		return e.value, nil
	}
	return c.Refresh(ctx, k)
}

// Refresh fetches k and applies the result. Concurrent calls for the
// same key share one fetch. The fetch does not inherit cancellation from
// ctx, so a cancelled caller returns early without failing the others;
// it is bounded by the fetch timeout instead.
func (c *Cache) Refresh(ctx context.Context, k Key) (any, error) {
	c.mu.Lock()
	def, ok := c.defs[k]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("cache key %s is not registered", k)
	}

	ch := c.group.DoChan(k.String(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		value, err := def.Fetch(fctx)
		if err != nil {
			c.metrics.CacheRefresh(k.Feature, "error")
			return nil, fmt.Errorf("refreshing %s: %w", k, err)
		}

		c.mu.Lock()
		_, stillRegistered := c.defs[k]
		if stillRegistered {
			c.entries.Add(k, entry{value: value, fetchedAt: c.now()})
		}
		c.mu.Unlock()

		if !stillRegistered {
			c.metrics.CacheRefresh(k.Feature, "discarded")
			return value, nil
		}
		if def.Apply != nil {
			def.Apply(value)
		}
		c.metrics.CacheRefresh(k.Feature, "ok")
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.log.Debug().Str("key", k.String()).Msg("joined in-flight refresh")
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate marks k for refresh on the next Get or poll.
func (c *Cache) Invalidate(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Peek(k); ok {
		e.invalid = true
		c.entries.Add(k, e)
	}
}

// InvalidateFeature invalidates every key of a feature.
func (c *Cache) InvalidateFeature(feature string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.entries.Keys() {
		if k.Feature != feature {
			continue
		}
		if e, ok := c.entries.Peek(k); ok {
			e.invalid = true
			c.entries.Add(k, e)
		}
	}
}

// SetPushConnected tells the cache whether the push transport is live.
func (c *Cache) SetPushConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushConnected = connected
}

// PushConnected reports the last value passed to SetPushConnected.
func (c *Cache) PushConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushConnected
}

// Due returns the keys that need a background refresh at now:
// missing, invalidated or older than their staleness window.
// Push-covered keys are skipped while push is connected unless they
// were invalidated explicitly.
func (c *Cache) Due(now time.Time) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []Key
	for k, def := range c.defs {
		e, found := c.entries.Peek(k)
		if found && e.invalid {
			due = append(due, k)
			continue
		}
		if def.PushCovered && c.pushConnected && found {
			c.metrics.CacheRefresh(k.Feature, "suppressed")
			continue
		}
		if !found || now.Sub(e.fetchedAt) >= def.StaleAfter {
			due = append(due, k)
		}
	}
	sortKeys(due)
	return due
}

// FetchedAt returns when k was last fetched.
func (c *Cache) FetchedAt(k Key) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(k)
	if !ok {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}

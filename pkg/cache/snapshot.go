package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State describes where a key is in its refresh lifecycle.
type State int

const (
	StateEmpty State = iota
	StateFetching
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "FETCHING"
	case StateFresh:
		return "FRESH"
	case StateStale:
		return "STALE"
	default:
		return "EMPTY"
	}
}

// Entry is an immutable cached payload. A refresh replaces the whole Entry.
type Entry[V any] struct {
	Key       string
	Payload   V
	FetchedAt time.Time
	TTL       time.Duration
}

// FetchFunc loads a fresh payload for key. A zero fetchedAt means "now".
type FetchFunc[V any] func(ctx context.Context, key string) (payload V, fetchedAt time.Time, err error)

// UnavailableError is returned when a fetch failed and nothing is cached for the key.
type UnavailableError struct {
	Key string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("no data available for %s: %v", e.Key, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Observer receives cache outcomes, e.g. for metrics.
type Observer interface {
	CacheLookup(cache, outcome string)
	CacheCoalesced(cache string)
}

// Snapshots is a keyed TTL cache with request coalescing. Concurrent callers
// of a missing or stale key share one fetch; readers of other keys never wait
// on it; entries are swapped whole so readers never see a partial payload.
type Snapshots[V any] struct {
	name         string
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	observer     Observer

	mu       sync.RWMutex
	entries  map[string]*Entry[V]
	inflight map[string]int

	group singleflight.Group
}

// Option configures a Snapshots cache.
type Option func(*options)

type options struct {
	fetchTimeout time.Duration
	now          func() time.Time
	observer     Observer
}

// WithFetchTimeout bounds each shared upstream fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchTimeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// NewSnapshots creates a cache whose entries stay fresh for ttl.
func NewSnapshots[V any](name string, ttl time.Duration, opts ...Option) *Snapshots[V] {
	o := options{fetchTimeout: 30 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Snapshots[V]{
		name:         name,
		ttl:          ttl,
		fetchTimeout: o.fetchTimeout,
		now:          o.now,
		observer:     o.observer,
		entries:      make(map[string]*Entry[V]),
		inflight:     make(map[string]int),
	}
}

// Get returns the payload for key, fetching it when missing or expired.
// stale is true when the returned payload is past its TTL because the
// refresh failed. An *UnavailableError is returned only when the fetch
// failed and no payload has ever been cached for key.
func (c *Snapshots[V]) Get(ctx context.Context, key string, fetch FetchFunc[V]) (payload V, stale bool, err error) {
	if e := c.lookup(key); e != nil && c.isFresh(e) {
		c.observe("fresh")
		return e.Payload, false, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another caller may have refreshed the key between our check and
		// acquiring the flight.
		if e := c.lookup(key); e != nil && c.isFresh(e) {
			return e, nil
		}
		c.markInflight(key, 1)
		defer c.markInflight(key, -1)

		// The fetch must outlive any single waiter's cancellation.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		v, fetchedAt, ferr := fetch(fctx, key)
		if ferr != nil {
			return nil, ferr
		}
		if fetchedAt.IsZero() {
			fetchedAt = c.now()
		}
		e := &Entry[V]{Key: key, Payload: v, FetchedAt: fetchedAt, TTL: c.ttl}
		c.store(e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		// The entry may have been refreshed elsewhere while we waited.
		if e := c.lookup(key); e != nil {
			if c.isFresh(e) {
				c.observe("fresh")
				return e.Payload, false, nil
			}
			c.observe("stale")
			return e.Payload, true, nil
		}
		c.observe("error")
		return payload, false, ctx.Err()
	case res := <-ch:
		if res.Shared && c.observer != nil {
			c.observer.CacheCoalesced(c.name)
		}
		if res.Err != nil {
			if e := c.lookup(key); e != nil {
				log.Printf("[WARN] %s: refresh of %s failed, serving stale payload from %s: %v",
					c.name, key, e.FetchedAt.Format(time.RFC3339), res.Err)
				c.observe("stale")
				return e.Payload, true, nil
			}
			c.observe("error")
			return payload, false, &UnavailableError{Key: key, Err: res.Err}
		}
		e := res.Val.(*Entry[V])
		c.observe("miss")
		return e.Payload, !c.isFresh(e), nil
	}
}

// Seed installs a payload fetched elsewhere (e.g. a persisted snapshot).
func (c *Snapshots[V]) Seed(key string, payload V, fetchedAt time.Time) {
	c.store(&Entry[V]{Key: key, Payload: payload, FetchedAt: fetchedAt, TTL: c.ttl})
}

// Peek returns the current entry for key without fetching.
func (c *Snapshots[V]) Peek(key string) (*Entry[V], State) {
	c.mu.RLock()
	e := c.entries[key]
	fetching := c.inflight[key] > 0
	c.mu.RUnlock()

	switch {
	case fetching:
		return e, StateFetching
	case e == nil:
		return nil, StateEmpty
	case c.isFresh(e):
		return e, StateFresh
	default:
		return e, StateStale
	}
}

// Invalidate drops key so the next Get fetches.
func (c *Snapshots[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of cached keys.
func (c *Snapshots[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Snapshots[V]) lookup(key string) *Entry[V] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

func (c *Snapshots[V]) store(e *Entry[V]) {
	c.mu.Lock()
	c.entries[e.Key] = e
	c.mu.Unlock()
}

func (c *Snapshots[V]) markInflight(key string, delta int) {
	c.mu.Lock()
	c.inflight[key] += delta
	if c.inflight[key] <= 0 {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
}

func (c *Snapshots[V]) isFresh(e *Entry[V]) bool {
	return c.now().Sub(e.FetchedAt) < e.TTL
}

func (c *Snapshots[V]) observe(outcome string) {
	if c.observer != nil {
		c.observer.CacheLookup(c.name, outcome)
	}
}

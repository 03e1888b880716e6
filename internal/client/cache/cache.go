// Package cache is the client's single source of truth for what the server
// state is believed to be. Entries are keyed by query identity, concurrent
// reads of one key share a single fetch, and invalidation by key prefix
// keeps the displayed value while a background refetch runs.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Fetcher loads the value for one query key.
type Fetcher func(ctx context.Context) (any, error)

// Entry is a read-only snapshot of one cache entry.
type Entry struct {
	Value    any
	HasValue bool
	Err      error
	Loading  bool
	Stale    bool
}

// entry is the mutable record behind a key. gen identifies the most recent
// fetch; a settling fetch whose gen no longer matches is discarded.
type entry struct {
	value    any
	hasValue bool
	err      error
	loading  bool
	stale    bool
	gen      uint64
	fetch    Fetcher
	done     chan struct{}
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{entries: make(map[string]*entry), logger: logger}
}

// Read returns the current snapshot for key. If nothing is in flight and
// the entry is absent or stale, it starts one fetch; a second read arriving
// before that fetch settles observes the same fetch, never a second one.
func (c *Cache) Read(ctx context.Context, key string, fetch Fetcher) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil {
		e = &entry{}
		c.entries[key] = e
	}
	e.fetch = fetch
	if !e.loading && (!e.hasValue || e.stale || e.err != nil) {
		c.startFetchLocked(ctx, key, e)
	}
	return snapshot(e)
}

// ReadWait is Read that blocks until the entry settles. Used by callers
// that want the value rather than a loading snapshot.
func (c *Cache) ReadWait(ctx context.Context, key string, fetch Fetcher) (any, error) {
	c.Read(ctx, key, fetch)
	for {
		c.mu.Lock()
		e := c.entries[key]
		if !e.loading {
			v, err := e.value, e.err
			c.mu.Unlock()
			return v, err
		}
		done := e.done
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Peek returns the snapshot for key without ever triggering a fetch.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return snapshot(e), true
}

// Invalidate marks every entry whose key has the given prefix as stale and
// kicks off a background refetch. The last known value is kept so readers
// never see a gap; any fetch already in flight is superseded and its
// result discarded when it arrives.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		e.stale = true
		if e.fetch != nil {
			c.startFetchLocked(context.Background(), key, e)
		}
	}
}

// Mutate runs op and, only on success, invalidates the given key prefixes.
// On failure the cache is left untouched and the error goes to the caller;
// no optimistic update is ever applied.
func (c *Cache) Mutate(ctx context.Context, op func(context.Context) error, prefixes ...string) error {
	if err := op(ctx); err != nil {
		return err
	}
	for _, p := range prefixes {
		c.Invalidate(p)
	}
	return nil
}

// startFetchLocked takes ownership of the entry for a new fetch. Bumping
// gen supersedes any fetch still in flight.
func (c *Cache) startFetchLocked(ctx context.Context, key string, e *entry) {
	e.gen++
	gen := e.gen
	e.loading = true
	e.stale = false
	e.done = make(chan struct{})
	done := e.done
	fetch := e.fetch
	go func() {
		v, err := fetch(ctx)
		c.mu.Lock()
		defer c.mu.Unlock()
		defer close(done)
		if e.gen != gen {
			// Superseded by an invalidation; the newer fetch owns the entry.
			return
		}
		e.loading = false
		if err != nil {
			e.err = err
			c.logger.Debug("cache fetch failed", "key", key, "error", err)
			return
		}
		e.value = v
		e.hasValue = true
		e.err = nil
		if e.stale {
			c.startFetchLocked(context.Background(), key, e)
		}
	}()
}

func snapshot(e *entry) Entry {
	return Entry{Value: e.value, HasValue: e.hasValue, Err: e.err, Loading: e.loading, Stale: e.stale}
}

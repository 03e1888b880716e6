package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// blockingFetcher counts calls and holds every fetch until released.
type blockingFetcher struct {
	calls   atomic.Int64
	release chan struct{}
	value   any
	err     error
}

func newBlockingFetcher(value any) *blockingFetcher {
	return &blockingFetcher{release: make(chan struct{}), value: value}
}

func (f *blockingFetcher) fetch(ctx context.Context) (any, error) {
	f.calls.Add(1)
	<-f.release
	return f.value, f.err
}

func waitSettled(t *testing.T, c *Cache, key string) Entry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e, ok := c.Peek(key); ok && !e.Loading && !e.Stale {
			return e
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("entry %s never settled", key)
	return Entry{}
}

func TestRead_DeduplicatesConcurrentFetches(t *testing.T) {
	c := New(nil)
	f := newBlockingFetcher("v")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ReadWait(context.Background(), "k", f.fetch); err != nil {
				t.Errorf("read: %v", err)
			}
		}()
	}

	// Let both reads land on the loading entry before the fetch resolves.
	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(f.release)
	wg.Wait()

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("want exactly one network request, got %d", got)
	}
}

func TestRead_ServesFromCacheOnceLoaded(t *testing.T) {
	c := New(nil)
	var calls atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.ReadWait(context.Background(), "k", fetch)
		if err != nil || v != "v" {
			t.Fatalf("read %d: %v %v", i, v, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("cached reads refetched: %d calls", got)
	}
}

func TestInvalidate_KeepsValueAndRefetches(t *testing.T) {
	c := New(nil)
	var calls atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}
	if _, err := c.ReadWait(context.Background(), "reminders:list", fetch); err != nil {
		t.Fatal(err)
	}

	c.Invalidate("reminders")

	// The displayed value survives while the refetch is in flight.
	if e, ok := c.Peek("reminders:list"); !ok || !e.HasValue {
		t.Fatalf("invalidate dropped the value: %+v", e)
	}
	e := waitSettled(t, c, "reminders:list")
	if e.Value != 2 {
		t.Fatalf("want refetched value 2, got %v", e.Value)
	}
}

func TestInvalidate_PrefixMatchesAllVariants(t *testing.T) {
	c := New(nil)
	var listCalls, getCalls atomic.Int64
	listFetch := func(ctx context.Context) (any, error) { return int(listCalls.Add(1)), nil }
	getFetch := func(ctx context.Context) (any, error) { return int(getCalls.Add(1)), nil }

	keys := []string{"reminders:list", "reminders:list:scheduled", "reminders:list:failed"}
	for _, k := range keys {
		if _, err := c.ReadWait(context.Background(), k, listFetch); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.ReadWait(context.Background(), "reminders:get:abc", getFetch); err != nil {
		t.Fatal(err)
	}

	c.Invalidate("reminders:list")
	for _, k := range keys {
		waitSettled(t, c, k)
	}
	if got := listCalls.Load(); got != 6 {
		t.Fatalf("want all 3 list entries refetched (6 calls), got %d", got)
	}
	if got := getCalls.Load(); got != 1 {
		t.Fatalf("get entry refetched by list-prefix invalidation: %d calls", got)
	}
}

// A fetch superseded by an invalidation must have its result discarded;
// the read settles on post-invalidation data.
func TestInvalidate_DiscardsSupersededFetch(t *testing.T) {
	c := New(nil)
	first := newBlockingFetcher("old")

	go c.Read(context.Background(), "k", first.fetch)
	deadline := time.Now().Add(2 * time.Second)
	for first.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Swap in a fetcher that returns fresh data, then invalidate while the
	// first fetch is still hanging.
	c.mu.Lock()
	c.entries["k"].fetch = func(ctx context.Context) (any, error) { return "new", nil }
	c.mu.Unlock()
	c.Invalidate("k")
	close(first.release)

	e := waitSettled(t, c, "k")
	if e.Value != "new" {
		t.Fatalf("superseded fetch result accepted: %v", e.Value)
	}
}

func TestMutate_InvalidatesOnlyOnSuccess(t *testing.T) {
	c := New(nil)
	var calls atomic.Int64
	fetch := func(ctx context.Context) (any, error) { return int(calls.Add(1)), nil }
	if _, err := c.ReadWait(context.Background(), "reminders:list", fetch); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := c.Mutate(context.Background(), func(ctx context.Context) error { return boom }, "reminders")
	if !errors.Is(err, boom) {
		t.Fatalf("mutate error lost: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("failed mutation touched the cache: %d calls", got)
	}

	if err := c.Mutate(context.Background(), func(ctx context.Context) error { return nil }, "reminders"); err != nil {
		t.Fatal(err)
	}
	waitSettled(t, c, "reminders:list")
	if got := calls.Load(); got != 2 {
		t.Fatalf("successful mutation did not refetch: %d calls", got)
	}
}

func TestRead_ErrorSettlesAndRetriesOnNextRead(t *testing.T) {
	c := New(nil)
	var calls atomic.Int64
	boom := errors.New("down")
	fetch := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return "ok", nil
	}
	if _, err := c.ReadWait(context.Background(), "k", fetch); !errors.Is(err, boom) {
		t.Fatalf("want fetch error, got %v", err)
	}
	v, err := c.ReadWait(context.Background(), "k", fetch)
	if err != nil || v != "ok" {
		t.Fatalf("retry after error: %v %v", v, err)
	}
}

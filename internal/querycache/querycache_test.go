package querycache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

func newTestClient(t *testing.T, loggedIn bool) Client {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewClient(store, Options{
		FreshFor:   time.Minute,
		LoginState: func(context.Context) bool { return loggedIn },
	}, logger.NewNopLogger())
}

func TestMemoryStoreMarkStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, k := range []models.CacheKey{"/fez/42", "/fez/42/members", "/fez/420", "/fez/joined?cruiseday=1"} {
		if err := s.Set(ctx, k, Entry{Data: []byte(k)}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	n, err := s.MarkStale(ctx, "/fez/42")
	if err != nil {
		t.Fatalf("MarkStale: %v", err)
	}
	if n != 2 {
		t.Fatalf("marked: got %d, want 2", n)
	}

	tests := []struct {
		key   models.CacheKey
		stale bool
	}{
		{"/fez/42", true},
		{"/fez/42/members", true},
		{"/fez/420", false},
		{"/fez/joined?cruiseday=1", false},
	}
	for _, tt := range tests {
		e, ok, err := s.Get(ctx, tt.key)
		if err != nil || !ok {
			t.Fatalf("Get %s: ok=%v err=%v", tt.key, ok, err)
		}
		if e.Stale != tt.stale {
			t.Fatalf("%s stale: got %v, want %v", tt.key, e.Stale, tt.stale)
		}
	}
}

func TestClientFetchCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, true)

	var loads atomic.Int32
	load := func(context.Context) ([]byte, error) {
		loads.Add(1)
		return []byte("body"), nil
	}

	for range 2 {
		data, err := c.Fetch(ctx, "/fez/joined?cruiseday=2", load)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if string(data) != "body" {
			t.Fatalf("data: got %q", data)
		}
	}
	if got := loads.Load(); got != 1 {
		t.Fatalf("loads: got %d, want 1", got)
	}

	if err := c.Invalidate(ctx, models.ConversationListKey); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := c.Fetch(ctx, "/fez/joined?cruiseday=2", load); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := loads.Load(); got != 2 {
		t.Fatalf("loads after invalidate: got %d, want 2", got)
	}
}

func TestClientFetchLoaderError(t *testing.T) {
	c := newTestClient(t, true)
	boom := errors.New("boom")
	_, err := c.Fetch(context.Background(), "/events", func(context.Context) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch: got %v, want %v", err, boom)
	}
	if _, ok, _ := c.Get(context.Background(), "/events"); ok {
		t.Fatal("failed load should not be stored")
	}
}

func TestClientFetchRequiresLogin(t *testing.T) {
	c := newTestClient(t, false)
	_, err := c.Fetch(context.Background(), "/events", func(context.Context) ([]byte, error) {
		t.Fatal("loader should not run")
		return nil, nil
	})
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Fetch: got %v, want ErrNotLoggedIn", err)
	}
}

func TestClientWatch(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, true)

	woken := make(chan models.CacheKey, 4)
	cancel := c.Watch("/fez/joined", func(_ context.Context, key models.CacheKey) {
		woken <- key
	})

	if err := c.Invalidate(ctx, models.ConversationListKey); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	select {
	case key := <-woken:
		if key != models.ConversationListKey {
			t.Fatalf("key: got %s, want %s", key, models.ConversationListKey)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher not woken")
	}

	// Unrelated keys do not wake the watcher.
	if err := c.Invalidate(ctx, models.AnnouncementsKey); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	cancel()
	if err := c.Invalidate(ctx, models.ConversationListKey); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	select {
	case key := <-woken:
		t.Fatalf("unexpected wake for %s", key)
	case <-time.After(50 * time.Millisecond):
	}
}

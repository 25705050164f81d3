package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/internal/socket"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

type fakeManager struct {
	mu      sync.Mutex
	opened  []models.ConnKey
	closed  []models.ConnKey
	streams map[models.ConnKey]chan socket.Message
}

func newFakeManager() *fakeManager {
	return &fakeManager{streams: make(map[models.ConnKey]chan socket.Message)}
}

func (m *fakeManager) Open(_ context.Context, key models.ConnKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, key)
	return nil
}

func (m *fakeManager) Close(key models.ConnKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, key)
	return nil
}

func (m *fakeManager) OpenConversation(ctx context.Context, fezID string) error {
	return m.Open(ctx, models.ConversationConnKey(fezID))
}

func (m *fakeManager) CloseConversation(fezID string) error {
	return m.Close(models.ConversationConnKey(fezID))
}

func (m *fakeManager) Send(context.Context, models.ConnKey, []byte) error { return nil }

func (m *fakeManager) State(models.ConnKey) models.ConnState { return models.ConnStateOpen }

func (m *fakeManager) States() []models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ConnectionStatus, 0, len(m.opened))
	for _, k := range m.opened {
		out = append(out, models.ConnectionStatus{Key: k, State: models.ConnStateOpen})
	}
	return out
}

func (m *fakeManager) Messages(key models.ConnKey) <-chan socket.Message {
	return m.stream(key)
}

func (m *fakeManager) stream(key models.ConnKey) chan socket.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.streams[key]
	if !ok {
		ch = make(chan socket.Message, 8)
		m.streams[key] = ch
	}
	return ch
}

func (m *fakeManager) push(key models.ConnKey, data string) {
	m.stream(key) <- socket.Message{Key: key, Data: []byte(data)}
}

func (m *fakeManager) Shutdown() {}

type chanPeers chan models.CacheKey

func (p chanPeers) Updates() <-chan models.CacheKey { return p }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// watchKey reports every invalidation covering prefix.
func watchKey(t *testing.T, cache querycache.Client, prefix models.CacheKey) <-chan models.CacheKey {
	t.Helper()
	ch := make(chan models.CacheKey, 8)
	cancel := cache.Watch(prefix, func(_ context.Context, key models.CacheKey) {
		ch <- key
	})
	t.Cleanup(cancel)
	return ch
}

// expectKey waits for want. Watchers fire concurrently, so related keys may
// arrive first.
func expectKey(t *testing.T, ch <-chan models.CacheKey, want models.CacheKey) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("no invalidation of %s", want)
		}
	}
}

func newTestSyncService(t *testing.T, peers PeerInvalidations) (*syncService, *fakeManager, querycache.Client) {
	t.Helper()
	l := logger.NewNopLogger()
	cache := querycache.NewClient(querycache.NewMemoryStore(), querycache.Options{}, l)
	mgr := newFakeManager()
	router := notification.NewRouter(cache, nil, l)
	cfg := config.SocketConfig{EnableNotification: true, EnableConversation: true}

	svc := NewSyncService(mgr, router, cache, peers, cfg, l).(*syncService)
	t.Cleanup(func() { _ = svc.Stop() })
	return svc, mgr, cache
}

func TestSyncRoutesNotificationFrames(t *testing.T) {
	ctx := context.Background()
	svc, mgr, cache := newTestSyncService(t, nil)
	detail := watchKey(t, cache, "/fez/42")

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !slices.Equal(mgr.opened, []models.ConnKey{models.NotificationConnKey}) {
		t.Fatalf("opened: got %v", mgr.opened)
	}

	mgr.push(models.NotificationConnKey, `{"type":{"fezUnreadMsg":{}},"info":"new","contentID":"42"}`)
	expectKey(t, detail, "/fez/42")

	mgr.push(models.NotificationConnKey, `not json`)
	waitFor(t, "rejected frame", func() bool { return svc.Status().FramesRejected == 1 })

	if got := svc.Status().FramesHandled; got != 1 {
		t.Fatalf("handled: got %d, want 1", got)
	}
}

func TestSyncConversationSockets(t *testing.T) {
	ctx := context.Background()
	svc, mgr, cache := newTestSyncService(t, nil)
	members := watchKey(t, cache, "/fez/B/members")

	if err := svc.OpenConversation(ctx, "A"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("OpenConversation before Start: got %v, want ErrNotRunning", err)
	}
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := svc.OpenConversation(ctx, "A"); err != nil {
		t.Fatalf("OpenConversation A: %v", err)
	}
	if err := svc.OpenConversation(ctx, "B"); err != nil {
		t.Fatalf("OpenConversation B: %v", err)
	}

	svc.mu.Lock()
	_, hasA := svc.conversations["A"]
	_, hasB := svc.conversations["B"]
	svc.mu.Unlock()
	if hasA || !hasB {
		t.Fatalf("conversation pumps: A=%v B=%v, want only B", hasA, hasB)
	}

	mgr.push(models.ConversationConnKey("B"), `{"user":{"userID":"u"},"joined":true}`)
	expectKey(t, members, "/fez/B/members")

	if err := svc.CloseConversation("B"); err != nil {
		t.Fatalf("CloseConversation: %v", err)
	}
	if !slices.Contains(mgr.closed, models.ConversationConnKey("B")) {
		t.Fatalf("closed: got %v", mgr.closed)
	}
}

func TestSyncConversationDisabled(t *testing.T) {
	l := logger.NewNopLogger()
	cache := querycache.NewClient(querycache.NewMemoryStore(), querycache.Options{}, l)
	svc := NewSyncService(newFakeManager(), notification.NewRouter(cache, nil, l), cache, nil,
		config.SocketConfig{EnableNotification: true}, l)

	if err := svc.OpenConversation(context.Background(), "A"); !errors.Is(err, ErrConversationOff) {
		t.Fatalf("OpenConversation: got %v, want ErrConversationOff", err)
	}
}

func TestSyncForwardsPeerInvalidations(t *testing.T) {
	ctx := context.Background()
	peers := make(chanPeers, 1)
	svc, _, cache := newTestSyncService(t, peers)
	joined := watchKey(t, cache, models.ConversationListKey)

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	peers <- models.ConversationListKey
	expectKey(t, joined, models.ConversationListKey)

	if got := svc.Status().PeerUpdates; got != 1 {
		t.Fatalf("peer updates: got %d, want 1", got)
	}
}

func TestSyncStartStop(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestSyncService(t, nil)

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start: got %v, want ErrAlreadyRunning", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := svc.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second Stop: got %v, want ErrNotRunning", err)
	}
	if svc.Status().IsRunning {
		t.Fatal("still running after Stop")
	}
}

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

type testServer struct {
	*httptest.Server
	hits atomic.Int32
	last atomic.Value
}

func newTestRepository(t *testing.T, handler http.HandlerFunc) (ScheduleRepository, querycache.Client, *testServer) {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		ts.last.Store(r)
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	l := logger.NewNopLogger()
	cache := querycache.NewClient(querycache.NewMemoryStore(), querycache.Options{FreshFor: time.Minute}, l)
	repo := NewScheduleRepository(config.APIConfig{
		BaseURL: ts.URL,
		Token:   "secret",
		Timeout: 5 * time.Second,
	}, cache, l)
	return repo, cache, ts
}

func (ts *testServer) lastRequest() *http.Request {
	r, _ := ts.last.Load().(*http.Request)
	return r
}

func TestEventsFetcher(t *testing.T) {
	repo, _, ts := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"eventID":"E1","title":"Sail Away","startTime":"2025-03-08T21:00:00Z","endTime":"2025-03-08T22:00:00Z","eventType":"Shadow Event","isFavorite":true},
			{"eventID":"E2","title":"Trivia","startTime":"2025-03-08T23:00:00Z","eventType":"Something New"}
		]`))
	})

	page, err := repo.Events().FetchPage(context.Background(), 1, models.PageParams{Limit: 50})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if got := ts.lastRequest().URL.Query().Get("cruiseday"); got != "1" {
		t.Fatalf("cruiseday: got %q, want 1", got)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(page.Items))
	}
	e1 := page.Items[0]
	if e1.ID != "E1" || e1.Kind != models.EntryKindEvent || !e1.Favorite || e1.EventType != models.EventTypeShadow {
		t.Fatalf("E1: got %+v", e1)
	}
	if page.Items[1].EventType != models.EventTypeGeneral || page.Items[1].EndTime != nil {
		t.Fatalf("E2: got %+v", page.Items[1])
	}
	if _, ok := page.Paginator.Next(); ok {
		t.Fatal("events are a single page")
	}
}

func TestFezFetcherQueryAndPaging(t *testing.T) {
	repo, _, ts := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"paginator":{"start":0,"limit":1,"total":3},
			"fezzes":[{"fezID":"A1","fezType":"gaming","title":"Cards","startTime":"2025-03-08T14:00:00Z"}]
		}`))
	})

	page, err := repo.JoinedLFGs().FetchPage(context.Background(), 0, models.PageParams{Start: 0, Limit: 1})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	r := ts.lastRequest()
	if r.URL.Path != JoinedLFGsPath {
		t.Fatalf("path: got %q, want %q", r.URL.Path, JoinedLFGsPath)
	}
	q := r.URL.Query()
	if q.Get("cruiseday") != "0" || q.Get("start") != "0" || q.Get("limit") != "1" {
		t.Fatalf("query: got %v", q)
	}
	if ex := q["excludetype"]; len(ex) != 2 || ex[0] != "closed" || ex[1] != "open" {
		t.Fatalf("excludetype: got %v", ex)
	}

	if len(page.Items) != 1 || page.Items[0].Kind != models.EntryKindJoinedActivity || !page.Items[0].Joined {
		t.Fatalf("items: got %+v", page.Items)
	}
	if next, ok := page.Paginator.Next(); !ok || next.Start != 1 {
		t.Fatalf("next: got %+v, %v", next, ok)
	}
}

func TestFetcherServedFromCacheUntilInvalidated(t *testing.T) {
	repo, cache, ts := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"paginator":{"start":0,"limit":50,"total":0},"fezzes":[]}`))
	})
	ctx := context.Background()
	fetch := func() {
		t.Helper()
		if _, err := repo.JoinedLFGs().FetchPage(ctx, 2, models.PageParams{Limit: 50}); err != nil {
			t.Fatalf("FetchPage: %v", err)
		}
	}

	fetch()
	fetch()
	if got := ts.hits.Load(); got != 1 {
		t.Fatalf("hits: got %d, want 1", got)
	}

	if err := cache.Invalidate(ctx, models.ConversationListKey); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	fetch()
	if got := ts.hits.Load(); got != 2 {
		t.Fatalf("hits after invalidate: got %d, want 2", got)
	}
}

func TestFetcherUpstreamError(t *testing.T) {
	repo, _, _ := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	_, err := repo.PersonalEvents().FetchPage(context.Background(), 0, models.PageParams{})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("FetchPage: got %v, want ErrUnexpectedStatus", err)
	}
}

func TestEventsFetcherKeepsEntryWithBadTime(t *testing.T) {
	repo, _, _ := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"eventID":"E1","title":"Sail Away","startTime":"2025-03-08T21:00:00Z"},
			{"eventID":"E2","title":"Mystery","startTime":"tbd","endTime":null}
		]`))
	})

	page, err := repo.Events().FetchPage(context.Background(), 1, models.PageParams{Limit: 50})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(page.Items))
	}
	if page.Items[0].StartTime == nil {
		t.Fatal("E1 start time should decode")
	}
	if e2 := page.Items[1]; e2.ID != "E2" || e2.StartTime != nil || e2.EndTime != nil {
		t.Fatalf("E2: got %+v, want no times", e2)
	}
}

func TestFetcherDoesNotCacheUndecodableBody(t *testing.T) {
	repo, _, ts := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"paginator":{"start":0,"limit":50,"total":0},"fezzes":"nope"}`))
	})
	ctx := context.Background()

	for i := range 2 {
		if _, err := repo.OpenLFGs().FetchPage(ctx, 1, models.PageParams{Limit: 50}); err == nil {
			t.Fatalf("FetchPage %d: want decode error", i)
		}
	}
	if got := ts.hits.Load(); got != 2 {
		t.Fatalf("hits: got %d, want 2", got)
	}
}

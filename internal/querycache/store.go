package querycache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
)

// Entry is one cached response body.
type Entry struct {
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
	Stale     bool      `json:"stale"`
}

// Store persists entries by key. MarkStale flags every key covered by
// prefix and returns how many were flagged.
type Store interface {
	Get(ctx context.Context, key models.CacheKey) (Entry, bool, error)
	Set(ctx context.Context, key models.CacheKey, e Entry) error
	MarkStale(ctx context.Context, prefix models.CacheKey) (int, error)
	Close() error
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[models.CacheKey]Entry
}

func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[models.CacheKey]Entry)}
}

func (s *memoryStore) Get(_ context.Context, key models.CacheKey) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	e.Data = slices.Clone(e.Data)
	return e, true, nil
}

func (s *memoryStore) Set(_ context.Context, key models.CacheKey, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Data = slices.Clone(e.Data)
	s.entries[key] = e
	return nil
}

func (s *memoryStore) MarkStale(_ context.Context, prefix models.CacheKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for k, e := range s.entries {
		if !prefix.Covers(k) || e.Stale {
			continue
		}
		e.Stale = true
		s.entries[k] = e
		n++
	}
	return n, nil
}

func (s *memoryStore) Close() error { return nil }

package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
	"golang.org/x/sync/singleflight"
)

var ErrNotLoggedIn = errors.New("not logged in")

// Invalidator is the slice of the cache the notification router borrows.
type Invalidator interface {
	Invalidate(ctx context.Context, key models.CacheKey) error
	IsLoggedIn(ctx context.Context) bool
}

// Loader produces a fresh body for a key.
type Loader func(ctx context.Context) ([]byte, error)

// WatchFunc is called after a key covered by the watched prefix has been
// invalidated.
type WatchFunc func(ctx context.Context, key models.CacheKey)

type Client interface {
	Invalidator
	Get(ctx context.Context, key models.CacheKey) (Entry, bool, error)
	Set(ctx context.Context, key models.CacheKey, data []byte) error
	// Fetch returns the cached body while it is fresh, otherwise loads and
	// stores a new one. Concurrent loads of one key are collapsed.
	Fetch(ctx context.Context, key models.CacheKey, load Loader) ([]byte, error)
	Watch(prefix models.CacheKey, fn WatchFunc) (cancel func())
	// Notify wakes watchers without touching the store. Used for
	// invalidations that were applied by another process.
	Notify(ctx context.Context, key models.CacheKey)
}

// LoginState reports whether a user session is present.
type LoginState func(ctx context.Context) bool

type Options struct {
	FreshFor   time.Duration
	LoginState LoginState
}

type watcher struct {
	id     uint64
	prefix models.CacheKey
	fn     WatchFunc
}

type client struct {
	store Store
	opts  Options
	l     logger.Logger
	group singleflight.Group

	mu       sync.RWMutex
	nextID   uint64
	watchers []watcher
}

func NewClient(store Store, opts Options, l logger.Logger) Client {
	if opts.LoginState == nil {
		opts.LoginState = func(context.Context) bool { return true }
	}
	return &client{
		store: store,
		opts:  opts,
		l:     l,
	}
}

func (c *client) IsLoggedIn(ctx context.Context) bool {
	return c.opts.LoginState(ctx)
}

func (c *client) Get(ctx context.Context, key models.CacheKey) (Entry, bool, error) {
	return c.store.Get(ctx, key)
}

func (c *client) Set(ctx context.Context, key models.CacheKey, data []byte) error {
	return c.store.Set(ctx, key, Entry{Data: data, UpdatedAt: time.Now()})
}

func (c *client) Invalidate(ctx context.Context, key models.CacheKey) error {
	n, err := c.store.MarkStale(ctx, key)
	if err != nil {
		return fmt.Errorf("mark %s stale: %w", key, err)
	}
	c.l.Debugf(ctx, "querycache.client.Invalidate: %s (%d entries)", key, n)

	c.Notify(ctx, key)
	return nil
}

func (c *client) Notify(ctx context.Context, key models.CacheKey) {
	c.mu.RLock()
	var fns []WatchFunc
	for _, w := range c.watchers {
		if key.Covers(w.prefix) || w.prefix.Covers(key) {
			fns = append(fns, w.fn)
		}
	}
	c.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, fn := range fns {
		go fn(detached, key)
	}
}

func (c *client) Watch(prefix models.CacheKey, fn WatchFunc) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers = append(c.watchers, watcher{id: id, prefix: prefix, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, w := range c.watchers {
			if w.id == id {
				c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
				return
			}
		}
	}
}

func (c *client) Fetch(ctx context.Context, key models.CacheKey, load Loader) ([]byte, error) {
	if !c.IsLoggedIn(ctx) {
		return nil, ErrNotLoggedIn
	}

	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.l.Warnf(ctx, "querycache.client.Fetch: read %s: %v", key, err)
	} else if ok && c.fresh(e) {
		return e.Data, nil
	}

	v, err, _ := c.group.Do(string(key), func() (any, error) {
		data, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, data); err != nil {
			c.l.Warnf(ctx, "querycache.client.Fetch: store %s: %v", key, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *client) fresh(e Entry) bool {
	if e.Stale {
		return false
	}
	if c.opts.FreshFor <= 0 {
		return true
	}
	return time.Since(e.UpdatedAt) < c.opts.FreshFor
}

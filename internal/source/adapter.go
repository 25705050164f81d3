package source

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

// Page is one server page of schedule entries.
type Page struct {
	Items     []models.ScheduleEntry
	Paginator models.Paginator
}

// PageFetcher loads one page for a server-side cruise day.
type PageFetcher interface {
	FetchPage(ctx context.Context, cruiseDay int, params models.PageParams) (Page, error)
}

// Gate reports whether a source may fetch. It combines the feature toggle
// with the login state.
type Gate interface {
	Enabled(ctx context.Context) bool
}

type GateFunc func(ctx context.Context) bool

func (f GateFunc) Enabled(ctx context.Context) bool { return f(ctx) }

// AlwaysEnabled is a Gate that never blocks.
var AlwaysEnabled Gate = GateFunc(func(context.Context) bool { return true })

type Config struct {
	Name string
	Kind models.EntryKind
	// DayOffset is added to the selected cruise day before querying.
	DayOffset int
	Limit     int
}

// State is a snapshot of an adapter. Items are in page order.
type State struct {
	Name            string                 `json:"name"`
	Kind            models.EntryKind       `json:"kind"`
	Items           []models.ScheduleEntry `json:"items"`
	IsLoading       bool                   `json:"is_loading"`
	HasNextPage     bool                   `json:"has_next_page"`
	HasPreviousPage bool                   `json:"has_previous_page"`
	CruiseDay       int                    `json:"cruise_day"`
	Enabled         bool                   `json:"enabled"`
	Err             error                  `json:"-"`
	UpdatedAt       time.Time              `json:"updated_at,omitempty"`
}

type Adapter interface {
	Name() string
	Kind() models.EntryKind
	// SetCruiseDay selects the 1-based cruise day and loads its first page.
	SetCruiseDay(ctx context.Context, day int) error
	Refetch(ctx context.Context) error
	FetchNext(ctx context.Context) error
	FetchPrevious(ctx context.Context) error
	State() State
	Items() []models.ScheduleEntry
}

type direction int

const (
	directionFirst direction = iota
	directionNext
	directionPrevious
)

// request pins the params a fetch was issued with. anchor is the Start of
// the page the fetch extends from.
type request struct {
	generation uint64
	cruiseDay  int
	dir        direction
	anchor     int
}

type adapter struct {
	cfg     Config
	fetcher PageFetcher
	gate    Gate
	l       logger.Logger

	mu         sync.Mutex
	cruiseDay  int
	generation uint64
	pages      []Page
	inflight   int
	err        error
	updatedAt  time.Time
}

func NewAdapter(cfg Config, fetcher PageFetcher, gate Gate, l logger.Logger) Adapter {
	if gate == nil {
		gate = AlwaysEnabled
	}
	return &adapter{
		cfg:     cfg,
		fetcher: fetcher,
		gate:    gate,
		l:       l,
	}
}

func (a *adapter) Name() string           { return a.cfg.Name }
func (a *adapter) Kind() models.EntryKind { return a.cfg.Kind }

func (a *adapter) SetCruiseDay(ctx context.Context, day int) error {
	if day < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidCruise, day)
	}

	a.mu.Lock()
	if a.cruiseDay != day {
		a.cruiseDay = day
		a.generation++
		a.pages = nil
		a.err = nil
	}
	a.mu.Unlock()

	return a.Refetch(ctx)
}

// Refetch reloads the first page. With the gate off it drops every page and
// supersedes in-flight fetches instead.
func (a *adapter) Refetch(ctx context.Context) error {
	if !a.gate.Enabled(ctx) {
		a.mu.Lock()
		a.generation++
		a.pages = nil
		a.err = nil
		a.mu.Unlock()
		return nil
	}

	a.mu.Lock()
	if a.cruiseDay == 0 {
		a.mu.Unlock()
		return ErrNoCruiseDay
	}
	a.generation++
	req := request{generation: a.generation, cruiseDay: a.cruiseDay, dir: directionFirst}
	a.mu.Unlock()

	page, err := a.fetch(ctx, req, models.PageParams{Start: 0, Limit: a.cfg.Limit})
	if err != nil {
		return err
	}

	return a.commit(ctx, req, func() {
		a.pages = []Page{page}
	})
}

func (a *adapter) FetchNext(ctx context.Context) error {
	if !a.gate.Enabled(ctx) {
		return nil
	}

	a.mu.Lock()
	if len(a.pages) == 0 {
		a.mu.Unlock()
		return nil
	}
	last := a.pages[len(a.pages)-1].Paginator
	params, ok := last.Next()
	req := request{generation: a.generation, cruiseDay: a.cruiseDay, dir: directionNext, anchor: last.Start}
	a.mu.Unlock()
	if !ok {
		return nil
	}

	page, err := a.fetch(ctx, req, params)
	if err != nil {
		return err
	}

	return a.commit(ctx, req, func() {
		a.pages = append(a.pages, page)
	})
}

func (a *adapter) FetchPrevious(ctx context.Context) error {
	if !a.gate.Enabled(ctx) {
		return nil
	}

	a.mu.Lock()
	if len(a.pages) == 0 {
		a.mu.Unlock()
		return nil
	}
	first := a.pages[0].Paginator
	params, ok := first.Previous()
	req := request{generation: a.generation, cruiseDay: a.cruiseDay, dir: directionPrevious, anchor: first.Start}
	a.mu.Unlock()
	if !ok {
		return nil
	}

	page, err := a.fetch(ctx, req, params)
	if err != nil {
		return err
	}

	return a.commit(ctx, req, func() {
		a.pages = append([]Page{page}, a.pages...)
	})
}

func (a *adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := State{
		Name:      a.cfg.Name,
		Kind:      a.cfg.Kind,
		Items:     a.itemsLocked(),
		IsLoading: a.inflight > 0,
		CruiseDay: a.cruiseDay,
		Enabled:   a.gate.Enabled(context.Background()),
		Err:       a.err,
		UpdatedAt: a.updatedAt,
	}
	if n := len(a.pages); n > 0 {
		_, s.HasNextPage = a.pages[n-1].Paginator.Next()
		_, s.HasPreviousPage = a.pages[0].Paginator.Previous()
	}
	return s
}

func (a *adapter) Items() []models.ScheduleEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.itemsLocked()
}

func (a *adapter) itemsLocked() []models.ScheduleEntry {
	var n int
	for _, p := range a.pages {
		n += len(p.Items)
	}
	out := make([]models.ScheduleEntry, 0, n)
	for _, p := range a.pages {
		out = append(out, p.Items...)
	}
	return out
}

// fetch runs outside the lock. A failure keeps the committed pages and
// records the error only if the request is still current.
func (a *adapter) fetch(ctx context.Context, req request, params models.PageParams) (Page, error) {
	a.mu.Lock()
	a.inflight++
	a.mu.Unlock()

	page, err := a.fetcher.FetchPage(ctx, req.cruiseDay+a.cfg.DayOffset, params)

	a.mu.Lock()
	a.inflight--
	current := a.isCurrentLocked(req)
	if err != nil && current {
		a.err = err
	}
	a.mu.Unlock()

	if err != nil {
		a.l.Warnf(ctx, "source.adapter.fetch: %s day %d start %d: %v", a.cfg.Name, req.cruiseDay, params.Start, err)
		return Page{}, fmt.Errorf("fetch %s page: %w", a.cfg.Name, err)
	}

	page.Items = slices.Clone(page.Items)
	return page, nil
}

func (a *adapter) commit(ctx context.Context, req request, apply func()) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isCurrentLocked(req) {
		a.l.Debugf(ctx, "source.adapter.commit: discarding stale %s result for day %d", a.cfg.Name, req.cruiseDay)
		return ErrStaleResult
	}

	apply()
	a.err = nil
	a.updatedAt = time.Now()
	return nil
}

func (a *adapter) isCurrentLocked(req request) bool {
	if req.generation != a.generation || req.cruiseDay != a.cruiseDay {
		return false
	}
	switch req.dir {
	case directionNext:
		return len(a.pages) > 0 && a.pages[len(a.pages)-1].Paginator.Start == req.anchor
	case directionPrevious:
		return len(a.pages) > 0 && a.pages[0].Paginator.Start == req.anchor
	default:
		return true
	}
}

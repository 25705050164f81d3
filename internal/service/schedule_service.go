package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/calendar"
	"github.com/vogiaan1904/voyage-sync/internal/cruisetime"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/internal/repository/api"
	"github.com/vogiaan1904/voyage-sync/internal/schedule"
	"github.com/vogiaan1904/voyage-sync/internal/source"
	pkgLog "github.com/vogiaan1904/voyage-sync/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// ScheduleSource pairs an adapter with the cache prefix whose invalidation
// makes it refetch.
type ScheduleSource struct {
	Adapter source.Adapter
	Watch   models.CacheKey
}

type ScheduleSources struct {
	Events         ScheduleSource
	JoinedLFGs     ScheduleSource
	OpenLFGs       ScheduleSource
	PersonalEvents ScheduleSource
}

func (s ScheduleSources) all() []ScheduleSource {
	return []ScheduleSource{s.Events, s.JoinedLFGs, s.OpenLFGs, s.PersonalEvents}
}

// NewScheduleSources builds the four adapters over repo. Every source needs
// a session; the toggles in cfg narrow that further.
func NewScheduleSources(
	repo api.ScheduleRepository,
	login querycache.Invalidator,
	cfg config.ScheduleConfig,
	limit int,
	l pkgLog.Logger,
) ScheduleSources {
	gate := func(toggles ...bool) source.Gate {
		return source.GateFunc(func(ctx context.Context) bool {
			if !cfg.Enabled {
				return false
			}
			for _, on := range toggles {
				if !on {
					return false
				}
			}
			return login.IsLoggedIn(ctx)
		})
	}

	return ScheduleSources{
		Events: ScheduleSource{
			Adapter: source.NewEventsAdapter(repo.Events(), gate(), limit, l),
			Watch:   models.CacheKey(api.EventsPath),
		},
		JoinedLFGs: ScheduleSource{
			Adapter: source.NewJoinedLFGAdapter(repo.JoinedLFGs(), gate(cfg.LFGEnabled, cfg.ShowJoinedLFGs), limit, l),
			Watch:   models.CacheKey(api.JoinedLFGsPath),
		},
		OpenLFGs: ScheduleSource{
			Adapter: source.NewOpenLFGAdapter(repo.OpenLFGs(), gate(cfg.LFGEnabled, cfg.ShowOpenLFGs), limit, l),
			Watch:   models.CacheKey(api.OpenLFGsPath),
		},
		PersonalEvents: ScheduleSource{
			Adapter: source.NewPersonalEventsAdapter(repo.PersonalEvents(), gate(cfg.PersonalEventsEnabled), limit, l),
			Watch:   models.CacheKey(api.PersonalEventsPath),
		},
	}
}

type scheduleService struct {
	srcs   ScheduleSources
	byName map[string]source.Adapter
	cache  querycache.Client
	voyage cruisetime.Voyage
	cfg    config.ScheduleConfig
	now    func() time.Time
	l      pkgLog.Logger

	mu      sync.RWMutex
	day     int
	cancels []func()
}

func NewScheduleService(
	srcs ScheduleSources,
	cache querycache.Client,
	voyage cruisetime.Voyage,
	cfg config.ScheduleConfig,
	l pkgLog.Logger,
) ScheduleService {
	s := &scheduleService{
		srcs:   srcs,
		byName: make(map[string]source.Adapter, 4),
		cache:  cache,
		voyage: voyage,
		cfg:    cfg,
		now:    time.Now,
		l:      l,
	}

	for _, src := range srcs.all() {
		s.byName[src.Adapter.Name()] = src.Adapter
		if src.Watch != "" {
			s.cancels = append(s.cancels, cache.Watch(src.Watch, s.onInvalidate(src.Adapter)))
		}
	}

	return s
}

// onInvalidate refetches a once the router has marked its endpoint stale.
func (s *scheduleService) onInvalidate(a source.Adapter) querycache.WatchFunc {
	return func(ctx context.Context, key models.CacheKey) {
		err := a.Refetch(ctx)
		switch {
		case err == nil:
			s.l.Debugf(ctx, "service.scheduleService.onInvalidate: %s refetched after %s", a.Name(), key)
		case errors.Is(err, source.ErrStaleResult), errors.Is(err, source.ErrNoCruiseDay):
		default:
			s.l.Warnf(ctx, "service.scheduleService.onInvalidate: %s after %s: %v", a.Name(), key, err)
		}
	}
}

func (s *scheduleService) Voyage() cruisetime.Voyage {
	return s.voyage
}

func (s *scheduleService) Days() ([]models.CruiseDay, error) {
	return s.voyage.Days()
}

func (s *scheduleService) Today() int {
	now := s.now()
	day, err := s.voyage.CruiseDayForInstant(now)
	if err == nil {
		return day.Ordinal
	}
	if now.Before(s.voyage.Start) {
		return 1
	}
	return s.voyage.Length
}

func (s *scheduleService) CruiseDay() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

func (s *scheduleService) SetCruiseDay(ctx context.Context, day int) error {
	if day < 1 || day > s.voyage.Length {
		return fmt.Errorf("%w: %d", ErrInvalidCruiseDay, day)
	}

	s.mu.Lock()
	s.day = day
	s.mu.Unlock()

	return s.fanOut(ctx, "SetCruiseDay", func(ctx context.Context, a source.Adapter) error {
		return a.SetCruiseDay(ctx, day)
	})
}

func (s *scheduleService) Refresh(ctx context.Context) error {
	if day := s.CruiseDay(); day == 0 {
		return s.SetCruiseDay(ctx, s.Today())
	}

	return s.fanOut(ctx, "Refresh", func(ctx context.Context, a source.Adapter) error {
		return a.Refetch(ctx)
	})
}

// fanOut runs fn on every adapter concurrently. One failing source does not
// cancel the others; the call fails only when every enabled source failed.
func (s *scheduleService) fanOut(ctx context.Context, op string, fn func(context.Context, source.Adapter) error) error {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		enabled int
		errs    []error
	)

	for _, src := range s.srcs.all() {
		a := src.Adapter
		on := a.State().Enabled
		if on {
			enabled++
		}

		g.Go(func() error {
			err := fn(ctx, a)
			if err == nil || errors.Is(err, source.ErrStaleResult) || !on {
				return nil
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == 0 {
		return nil
	}

	joined := errors.Join(errs...)
	if len(errs) == enabled {
		s.l.Errorf(ctx, "service.scheduleService.%s: %v", op, joined)
		return fmt.Errorf("%w: %w", ErrAllSourcesFailed, joined)
	}

	s.l.Warnf(ctx, "service.scheduleService.%s: %d of %d sources failed: %v", op, len(errs), enabled, joined)
	return nil
}

func (s *scheduleService) Page(ctx context.Context, name string, dir PageDirection) (source.State, error) {
	a, ok := s.byName[name]
	if !ok {
		return source.State{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}

	var err error
	switch dir {
	case PageNext:
		err = a.FetchNext(ctx)
	case PagePrevious:
		err = a.FetchPrevious(ctx)
	default:
		return source.State{}, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	if err != nil && !errors.Is(err, source.ErrStaleResult) {
		return a.State(), err
	}

	return a.State(), nil
}

func (s *scheduleService) Sources() []source.State {
	all := s.srcs.all()
	out := make([]source.State, 0, len(all))
	for _, src := range all {
		out = append(out, src.Adapter.State())
	}
	return out
}

func (s *scheduleService) Schedule(ctx context.Context, in ScheduleInput) (*ScheduleOutput, error) {
	if !s.cfg.Enabled {
		return nil, ErrScheduleDisabled
	}
	if in.Filters.EventType != "" && !in.Filters.EventType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, in.Filters.EventType)
	}

	out := &ScheduleOutput{}
	if in.Day != 0 && in.Day != s.CruiseDay() {
		if err := s.SetCruiseDay(ctx, in.Day); err != nil {
			if errors.Is(err, ErrInvalidCruiseDay) {
				return nil, err
			}
			out.Warnings = append(out.Warnings, err.Error())
		}
	}

	var joined, open []models.ScheduleEntry
	if s.cfg.ShowJoinedLFGs {
		joined = s.srcs.JoinedLFGs.Adapter.Items()
	}
	if s.cfg.ShowOpenLFGs {
		open = s.srcs.OpenLFGs.Adapter.Items()
	}

	rep := &warningReporter{ctx: ctx, l: s.l}
	now := s.now()
	b := schedule.Builder{
		Now:      func() time.Time { return now },
		Reporter: rep,
	}
	entries := b.Build(
		in.Filters,
		joined,
		open,
		s.srcs.Events.Adapter.Items(),
		s.srcs.PersonalEvents.Adapter.Items(),
	)

	out.CruiseDay = s.CruiseDay()
	out.Entries = entries
	out.NowIndex = schedule.LocateNow(now, entries, s.voyage)
	out.Sources = s.Sources()
	out.BuiltAt = now
	out.Warnings = append(out.Warnings, rep.warnings...)
	for _, st := range out.Sources {
		if st.Err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", st.Name, st.Err))
		}
	}
	if len(entries) == 0 {
		out.Empty = true
		out.Message = EmptyScheduleMessage
	}

	return out, nil
}

func (s *scheduleService) ExportICS(ctx context.Context, w io.Writer, in ScheduleInput) (int, error) {
	out, err := s.Schedule(ctx, in)
	if err != nil {
		return 0, err
	}

	n, err := calendar.Export(w, out.Entries, calendar.ExportOptions{
		Name:  fmt.Sprintf("Cruise day %d", out.CruiseDay),
		Stamp: out.BuiltAt,
	})
	if err != nil {
		s.l.Errorf(ctx, "service.scheduleService.ExportICS: %v", err)
		return 0, err
	}
	return n, nil
}

func (s *scheduleService) Close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

type warningReporter struct {
	ctx      context.Context
	l        pkgLog.Logger
	warnings []string
}

func (r *warningReporter) ReportDataQuality(e models.ScheduleEntry, reason string) {
	r.l.Warnf(r.ctx, "service.scheduleService.Schedule: dropping %s %q: %s", e.Kind, e.ID, reason)
	r.warnings = append(r.warnings, fmt.Sprintf("%s %s: %s", e.Kind, e.ID, reason))
}

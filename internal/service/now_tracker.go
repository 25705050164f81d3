package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/schedule"
	pkgLog "github.com/vogiaan1904/voyage-sync/pkg/logger"
)

const defaultNowRefreshSpec = "* * * * *"

type nowTracker struct {
	svc             ScheduleService
	spec            string
	shutdownTimeout time.Duration
	now             func() time.Time
	l               pkgLog.Logger

	mu        sync.RWMutex
	cron      *cron.Cron
	isRunning bool
	today     int
	snapshot  NowSnapshot
}

// NewNowTracker recomputes the "now" position of the schedule on the cron
// spec in cfg and follows the selected day across midnight.
func NewNowTracker(svc ScheduleService, cfg config.ScheduleConfig, l pkgLog.Logger) NowTracker {
	spec := cfg.NowRefreshSpec
	if spec == "" {
		spec = defaultNowRefreshSpec
	}
	return &nowTracker{
		svc:             svc,
		spec:            spec,
		shutdownTimeout: 10 * time.Second,
		now:             time.Now,
		l:               l,
	}
}

func (t *nowTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isRunning {
		return fmt.Errorf("now tracker: %w", ErrAlreadyRunning)
	}

	if _, err := cron.ParseStandard(t.spec); err != nil {
		return fmt.Errorf("parse now refresh spec %q: %w", t.spec, err)
	}

	loc := t.svc.Voyage().Location
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(t.spec, func() { t.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule now refresh: %w", err)
	}

	t.l.Infof(ctx, "service.nowTracker.Start: refreshing on %q", t.spec)
	t.cron = c
	t.isRunning = true
	c.Start()

	go t.Tick(ctx)
	return nil
}

func (t *nowTracker) Stop() error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return fmt.Errorf("now tracker: %w", ErrNotRunning)
	}
	c := t.cron
	t.cron = nil
	t.isRunning = false
	t.mu.Unlock()

	select {
	case <-c.Stop().Done():
		t.l.Info(context.Background(), "service.nowTracker.Stop: stopped")
	case <-time.After(t.shutdownTimeout):
		t.l.Warn(context.Background(), "service.nowTracker.Stop: shutdown timeout exceeded")
	}
	return nil
}

// Tick rolls the selected day forward when the voyage day changes under it,
// then recomputes the now index.
func (t *nowTracker) Tick(ctx context.Context) {
	today := t.svc.Today()

	t.mu.Lock()
	prev := t.today
	t.today = today
	t.mu.Unlock()

	if prev != 0 && prev != today && t.svc.CruiseDay() == prev {
		t.l.Infof(ctx, "service.nowTracker.Tick: cruise day rolled over %d -> %d", prev, today)
		if err := t.svc.SetCruiseDay(ctx, today); err != nil {
			t.l.Warnf(ctx, "service.nowTracker.Tick: %v", err)
		}
	}

	out, err := t.svc.Schedule(ctx, ScheduleInput{})
	if err != nil {
		t.l.Warnf(ctx, "service.nowTracker.Tick: %v", err)
		return
	}

	now := t.now()
	snap := NowSnapshot{
		CruiseDay:  out.CruiseDay,
		NowIndex:   out.NowIndex,
		DayTime:    schedule.NowDayTime(now, t.svc.Voyage()),
		Entries:    len(out.Entries),
		ComputedAt: now,
	}

	t.mu.Lock()
	t.snapshot = snap
	t.mu.Unlock()
}

func (t *nowTracker) Current() NowSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

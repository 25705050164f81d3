package service

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/cruisetime"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/internal/source"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

type stubFetcher struct {
	mu    sync.Mutex
	items []models.ScheduleEntry
	err   error
	days  []int
	calls chan int
}

func (f *stubFetcher) FetchPage(_ context.Context, day int, params models.PageParams) (source.Page, error) {
	f.mu.Lock()
	f.days = append(f.days, day)
	items, err := f.items, f.err
	f.mu.Unlock()

	if f.calls != nil {
		select {
		case f.calls <- day:
		default:
		}
	}
	if err != nil {
		return source.Page{}, err
	}
	return source.Page{
		Items:     items,
		Paginator: models.Paginator{Start: params.Start, Limit: params.Limit, Total: len(items)},
	}, nil
}

func (f *stubFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *stubFetcher) queriedDays() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.days)
}

type testSources struct {
	events, joined, open, personal *stubFetcher
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func testScheduleConfig() config.ScheduleConfig {
	return config.ScheduleConfig{
		Enabled:               true,
		LFGEnabled:            true,
		PersonalEventsEnabled: true,
		ShowJoinedLFGs:        true,
		ShowOpenLFGs:          true,
	}
}

func newTestScheduleService(t *testing.T, cfg config.ScheduleConfig, now time.Time) (*scheduleService, *testSources, querycache.Client) {
	t.Helper()

	l := logger.NewNopLogger()
	cache := querycache.NewClient(querycache.NewMemoryStore(), querycache.Options{}, l)
	voyage, err := cruisetime.NewVoyage("2025-03-08", 8, "UTC")
	if err != nil {
		t.Fatalf("NewVoyage: %v", err)
	}

	ts := &testSources{
		events: &stubFetcher{items: []models.ScheduleEntry{
			{ID: "E1", Title: "Opening Set", StartTime: at("2025-03-08T10:00:00Z"), EndTime: at("2025-03-08T11:00:00Z")},
		}},
		joined: &stubFetcher{items: []models.ScheduleEntry{
			{ID: "A1", Title: "Trivia", StartTime: at("2025-03-08T09:30:00Z"), EndTime: at("2025-03-08T10:30:00Z")},
		}},
		open: &stubFetcher{items: []models.ScheduleEntry{
			{ID: "A1", Title: "Trivia", StartTime: at("2025-03-08T09:30:00Z"), EndTime: at("2025-03-08T10:30:00Z")},
		}},
		personal: &stubFetcher{items: []models.ScheduleEntry{
			{ID: "P1", Title: "Dinner", StartTime: at("2025-03-08T11:00:00Z")},
		}},
	}

	gate := func(on bool) source.Gate {
		return source.GateFunc(func(context.Context) bool { return cfg.Enabled && on })
	}
	srcs := ScheduleSources{
		Events:         ScheduleSource{Adapter: source.NewEventsAdapter(ts.events, gate(true), 50, l), Watch: "/events"},
		JoinedLFGs:     ScheduleSource{Adapter: source.NewJoinedLFGAdapter(ts.joined, gate(cfg.ShowJoinedLFGs), 50, l), Watch: "/fez/joined"},
		OpenLFGs:       ScheduleSource{Adapter: source.NewOpenLFGAdapter(ts.open, gate(cfg.ShowOpenLFGs), 50, l), Watch: "/fez/open"},
		PersonalEvents: ScheduleSource{Adapter: source.NewPersonalEventsAdapter(ts.personal, gate(cfg.PersonalEventsEnabled), 50, l), Watch: "/personalevents"},
	}

	svc := NewScheduleService(srcs, cache, voyage, cfg, l).(*scheduleService)
	svc.now = func() time.Time { return now }
	t.Cleanup(svc.Close)
	return svc, ts, cache
}

func ids(entries models.AggregatedSchedule) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Kind.String() + ":" + e.ID
	}
	return out
}

func TestScheduleMergesSources(t *testing.T) {
	ctx := context.Background()
	svc, ts, _ := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))

	out, err := svc.Schedule(ctx, ScheduleInput{Day: 1})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	want := []string{"joined_activity:A1", "event:E1", "personal_event:P1"}
	if got := ids(out.Entries); !slices.Equal(got, want) {
		t.Fatalf("entries: got %v, want %v", got, want)
	}
	if out.CruiseDay != 1 || out.Empty || out.NowIndex != 0 {
		t.Fatalf("output: day %d empty %v now %d", out.CruiseDay, out.Empty, out.NowIndex)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings: got %v", out.Warnings)
	}

	// Fez and personal endpoints count days from zero.
	if got := ts.events.queriedDays(); !slices.Equal(got, []int{1}) {
		t.Fatalf("events days: got %v", got)
	}
	if got := ts.joined.queriedDays(); !slices.Equal(got, []int{0}) {
		t.Fatalf("joined days: got %v", got)
	}
}

func TestScheduleHidePast(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 10, 45, 0, 0, time.UTC))

	out, err := svc.Schedule(ctx, ScheduleInput{Day: 1, Filters: models.ScheduleFilterSettings{HidePast: true}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	want := []string{"event:E1", "personal_event:P1"}
	if got := ids(out.Entries); !slices.Equal(got, want) {
		t.Fatalf("entries: got %v, want %v", got, want)
	}
	if out.NowIndex != 1 {
		t.Fatalf("now index: got %d, want 1", out.NowIndex)
	}
}

func TestScheduleRespectsLFGToggles(t *testing.T) {
	ctx := context.Background()
	cfg := testScheduleConfig()
	cfg.ShowJoinedLFGs = false
	svc, ts, _ := newTestScheduleService(t, cfg, time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))

	out, err := svc.Schedule(ctx, ScheduleInput{Day: 1})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	want := []string{"open_activity:A1", "event:E1", "personal_event:P1"}
	if got := ids(out.Entries); !slices.Equal(got, want) {
		t.Fatalf("entries: got %v, want %v", got, want)
	}
	if days := ts.joined.queriedDays(); len(days) != 0 {
		t.Fatalf("disabled joined source fetched days %v", days)
	}
}

func TestScheduleEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))

	out, err := svc.Schedule(ctx, ScheduleInput{Filters: models.ScheduleFilterSettings{EventType: models.EventTypeYoga}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !out.Empty || out.Message != EmptyScheduleMessage || out.NowIndex != 0 {
		t.Fatalf("output: empty %v message %q now %d", out.Empty, out.Message, out.NowIndex)
	}
}

func TestScheduleRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))

	tests := []struct {
		name string
		in   ScheduleInput
		want error
	}{
		{"day past voyage", ScheduleInput{Day: 9}, ErrInvalidCruiseDay},
		{"negative day", ScheduleInput{Day: -1}, ErrInvalidCruiseDay},
		{"event type", ScheduleInput{Filters: models.ScheduleFilterSettings{EventType: "bingo"}}, ErrInvalidEventType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Schedule(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("Schedule: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScheduleDisabled(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.Enabled = false
	svc, _, _ := newTestScheduleService(t, cfg, time.Now())

	if _, err := svc.Schedule(context.Background(), ScheduleInput{}); !errors.Is(err, ErrScheduleDisabled) {
		t.Fatalf("Schedule: got %v, want ErrScheduleDisabled", err)
	}
}

func TestRefreshPartialFailure(t *testing.T) {
	ctx := context.Background()
	svc, ts, _ := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))

	if err := svc.SetCruiseDay(ctx, 1); err != nil {
		t.Fatalf("SetCruiseDay: %v", err)
	}

	ts.events.setErr(errors.New("upstream 503"))
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: got %v, want nil for a partial failure", err)
	}

	out, err := svc.Schedule(ctx, ScheduleInput{})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// Items from the last good fetch are kept.
	if got := ids(out.Entries); !slices.Contains(got, "event:E1") {
		t.Fatalf("entries: got %v, want E1 kept", got)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "upstream 503") {
		t.Fatalf("warnings: got %v", out.Warnings)
	}
}

func TestRefreshAllSourcesFailed(t *testing.T) {
	ctx := context.Background()
	svc, ts, _ := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))

	for _, f := range []*stubFetcher{ts.events, ts.joined, ts.open, ts.personal} {
		f.setErr(errors.New("offline"))
	}

	if err := svc.Refresh(ctx); !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("Refresh: got %v, want ErrAllSourcesFailed", err)
	}
	if svc.CruiseDay() != 1 {
		t.Fatalf("cruise day: got %d, want 1", svc.CruiseDay())
	}
}

func TestInvalidationRefetchesSource(t *testing.T) {
	ctx := context.Background()
	svc, ts, cache := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))

	if err := svc.SetCruiseDay(ctx, 2); err != nil {
		t.Fatalf("SetCruiseDay: %v", err)
	}
	ts.joined.calls = make(chan int, 1)

	if err := cache.Invalidate(ctx, models.ConversationListKey); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	select {
	case day := <-ts.joined.calls:
		if day != 1 {
			t.Fatalf("refetched day: got %d, want 1", day)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("joined source was not refetched")
	}
}

func TestPage(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))
	if err := svc.SetCruiseDay(ctx, 1); err != nil {
		t.Fatalf("SetCruiseDay: %v", err)
	}

	tests := []struct {
		name    string
		source  string
		dir     PageDirection
		wantErr error
	}{
		{"next without more pages", source.NameOpenLFGs, PageNext, nil},
		{"previous on first page", source.NameEvents, PagePrevious, nil},
		{"unknown source", "forums", PageNext, ErrUnknownSource},
		{"bad direction", source.NameEvents, "sideways", ErrInvalidDirection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := svc.Page(ctx, tt.source, tt.dir)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Page: got %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (st.Name != tt.source || len(st.Items) != 1) {
				t.Fatalf("state: got %s with %d items", st.Name, len(st.Items))
			}
		})
	}
}

func TestToday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before sailing", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), 1},
		{"day three", time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC), 3},
		{"after sailing", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestScheduleService(t, testScheduleConfig(), tt.now)
			if got := svc.Today(); got != tt.want {
				t.Fatalf("Today: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExportICS(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestScheduleService(t, testScheduleConfig(), time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	n, err := svc.ExportICS(ctx, &buf, ScheduleInput{Day: 1})
	if err != nil {
		t.Fatalf("ExportICS: %v", err)
	}
	if n != 3 {
		t.Fatalf("exported: got %d, want 3", n)
	}
	if got := strings.Count(buf.String(), "BEGIN:VEVENT"); got != 3 {
		t.Fatalf("VEVENT count: got %d, want 3", got)
	}
}

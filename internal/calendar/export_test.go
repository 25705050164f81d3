package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/vogiaan1904/voyage-sync/internal/models"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestExport(t *testing.T) {
	schedule := models.AggregatedSchedule{
		{ID: "A1", Kind: models.EntryKindJoinedActivity, Title: "Trivia", StartTime: at("2025-03-08T09:30:00Z"), EndTime: at("2025-03-08T10:30:00Z"), FezType: models.FezTypeGaming},
		{ID: "E1", Kind: models.EntryKindEvent, Title: "Opening Set", Location: "Main Stage", StartTime: at("2025-03-08T10:00:00Z"), EndTime: at("2025-03-08T11:00:00Z"), EventType: models.EventTypeMusic, Favorite: true},
		{ID: "P1", Kind: models.EntryKindPersonalEvent, Title: "Dinner", StartTime: at("2025-03-08T11:00:00Z")},
		{ID: "X", Kind: models.EntryKindEvent, Title: "No start"},
	}

	var buf bytes.Buffer
	n, err := Export(&buf, schedule, ExportOptions{Name: "Day 1", Stamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 3 {
		t.Fatalf("written: got %d, want 3", n)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 3 {
		t.Fatalf("events: got %d, want 3", len(events))
	}

	tests := []struct {
		uid      string
		summary  string
		category string
		start    *time.Time
		end      *time.Time
	}{
		{"joined_activity-A1@voyage-sync", "Trivia", "gaming", schedule[0].StartTime, schedule[0].EndTime},
		{"event-E1@voyage-sync", "Opening Set", "music", schedule[1].StartTime, schedule[1].EndTime},
		{"personal_event-P1@voyage-sync", "Dinner", "personal_event", schedule[2].StartTime, schedule[2].StartTime},
	}

	for i, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			ev := events[i]
			if got := ev.GetProperty(ical.ComponentPropertyUniqueId).Value; got != tt.uid {
				t.Fatalf("uid: got %q, want %q", got, tt.uid)
			}
			if got := ev.GetProperty(ical.ComponentPropertySummary).Value; got != tt.summary {
				t.Fatalf("summary: got %q, want %q", got, tt.summary)
			}
			if got := ev.GetProperty(ical.ComponentPropertyCategories).Value; got != tt.category {
				t.Fatalf("category: got %q, want %q", got, tt.category)
			}
			start, err := ev.GetStartAt()
			if err != nil || !start.Equal(*tt.start) {
				t.Fatalf("start: got %v (%v), want %v", start, err, *tt.start)
			}
			end, err := ev.GetEndAt()
			if err != nil || !end.Equal(*tt.end) {
				t.Fatalf("end: got %v (%v), want %v", end, err, *tt.end)
			}
		})
	}

	if p := events[1].GetProperty(ical.ComponentPropertyLocation); p == nil || p.Value != "Main Stage" {
		t.Fatalf("location: got %v", p)
	}
	if !strings.Contains(buf.String(), "PRODID:"+ProductID) {
		t.Fatalf("missing PRODID in %q", buf.String())
	}
}

func TestExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := Export(&buf, nil, ExportOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 0 {
		t.Fatalf("written: got %d, want 0", n)
	}
	if !strings.Contains(buf.String(), "BEGIN:VCALENDAR") {
		t.Fatalf("not a calendar: %q", buf.String())
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		name  string
		entry models.ScheduleEntry
		want  string
	}{
		{"joined without end", models.ScheduleEntry{Kind: models.EntryKindJoinedActivity, StartTime: at("2025-03-08T09:30:00Z")}, "Joined"},
		{"favorite", models.ScheduleEntry{Kind: models.EntryKindEvent, Favorite: true, StartTime: at("2025-03-08T10:00:00Z"), EndTime: at("2025-03-08T11:00:00Z")}, "Sat 10:00 AM - 11:00 AM (favorite)"},
		{"plain", models.ScheduleEntry{Kind: models.EntryKindEvent, StartTime: at("2025-03-08T10:00:00Z"), EndTime: at("2025-03-08T11:00:00Z")}, "Sat 10:00 AM - 11:00 AM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := description(tt.entry); got != tt.want {
				t.Fatalf("description: got %q, want %q", got, tt.want)
			}
		})
	}
}

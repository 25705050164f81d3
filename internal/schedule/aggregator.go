package schedule

import (
	"cmp"
	"slices"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
)

// DataQualityReporter receives entries dropped for malformed data.
type DataQualityReporter interface {
	ReportDataQuality(entry models.ScheduleEntry, reason string)
}

const (
	ReasonMissingStart   = "missing start time"
	ReasonEndBeforeStart = "end time before start time"
)

type nopReporter struct{}

func (nopReporter) ReportDataQuality(models.ScheduleEntry, string) {}

// Builder merges the four schedule sources. The zero value uses time.Now
// and discards data-quality reports.
type Builder struct {
	Now      func() time.Time
	Reporter DataQualityReporter
}

// BuildSchedule merges the sources with the wall clock as "now".
func BuildSchedule(
	filters models.ScheduleFilterSettings,
	joined, open, events, personal []models.ScheduleEntry,
) models.AggregatedSchedule {
	return Builder{}.Build(filters, joined, open, events, personal)
}

// Build concatenates the sources, keeps the joined variant of an activity
// that is also open, drops malformed entries, applies filters and sorts by
// start, kind priority and ID. An open activity is dropped whenever it was
// joined, even if the joined copy is filtered out. Inputs are never modified.
func (b Builder) Build(
	filters models.ScheduleFilterSettings,
	joined, open, events, personal []models.ScheduleEntry,
) models.AggregatedSchedule {
	reporter := b.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	all := make([]models.ScheduleEntry, 0, len(joined)+len(open)+len(events)+len(personal))
	all = appendTagged(all, events, models.EntryKindEvent)
	all = appendTagged(all, joined, models.EntryKindJoinedActivity)
	all = appendTagged(all, open, models.EntryKindOpenActivity)
	all = appendTagged(all, personal, models.EntryKindPersonalEvent)
	all = dedupActivities(all)

	var evaluatedAt time.Time
	if filters.HidePast {
		evaluatedAt = now()
	}

	kept := make([]models.ScheduleEntry, 0, len(all))
	for _, e := range all {
		if reason, ok := malformed(e); ok {
			reporter.ReportDataQuality(e, reason)
			continue
		}
		if !matches(filters, e, evaluatedAt) {
			continue
		}
		kept = append(kept, e)
	}

	slices.SortStableFunc(kept, compareEntries)
	return models.AggregatedSchedule(kept)
}

func appendTagged(dst, src []models.ScheduleEntry, kind models.EntryKind) []models.ScheduleEntry {
	for _, e := range src {
		e.Kind = kind
		if kind == models.EntryKindJoinedActivity {
			e.Joined = true
		}
		dst = append(dst, e)
	}
	return dst
}

func malformed(e models.ScheduleEntry) (string, bool) {
	if e.StartTime == nil || e.StartTime.IsZero() {
		return ReasonMissingStart, true
	}
	if e.EndTime != nil && e.EndTime.Before(*e.StartTime) {
		return ReasonEndBeforeStart, true
	}
	return "", false
}

func matches(f models.ScheduleFilterSettings, e models.ScheduleEntry, now time.Time) bool {
	if f.FavoriteOnly {
		favorite := (e.Kind == models.EntryKindEvent && e.Favorite) || e.Kind == models.EntryKindJoinedActivity
		if !favorite {
			return false
		}
	}
	if f.PersonalOnly && e.Kind != models.EntryKindPersonalEvent {
		return false
	}
	if f.LFGOnly && !e.Kind.IsActivity() {
		return false
	}
	// Activities and personal events are outside the event-type taxonomy.
	if f.EventType != "" && e.Kind == models.EntryKindEvent && e.EventType != f.EventType {
		return false
	}
	if f.HidePast && e.EffectiveEnd().Before(now) {
		return false
	}
	return true
}

// dedupActivities drops an open activity when the joined list carries the
// same ID.
func dedupActivities(entries []models.ScheduleEntry) []models.ScheduleEntry {
	joined := make(map[string]struct{})
	for _, e := range entries {
		if e.Kind == models.EntryKindJoinedActivity {
			joined[e.ID] = struct{}{}
		}
	}
	if len(joined) == 0 {
		return entries
	}

	out := entries[:0]
	for _, e := range entries {
		if e.Kind == models.EntryKindOpenActivity {
			if _, dup := joined[e.ID]; dup {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func compareEntries(a, b models.ScheduleEntry) int {
	if c := a.StartTime.Compare(*b.StartTime); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

package calendar

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/vogiaan1904/voyage-sync/internal/cruisetime"
	"github.com/vogiaan1904/voyage-sync/internal/models"
)

const (
	ProductID = "-//voyage-sync//schedule//EN"
	uidDomain = "voyage-sync"
)

type ExportOptions struct {
	// Name becomes X-WR-CALNAME when set.
	Name string
	// Stamp is DTSTAMP for every event. Zero means time.Now.
	Stamp time.Time
}

// Export renders an aggregated schedule as an iCalendar document. Entries
// without a start are skipped; an entry without an end gets a zero-length
// event at its start.
func Export(w io.Writer, schedule models.AggregatedSchedule, opts ExportOptions) (int, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	written := 0
	for _, e := range schedule {
		if e.StartTime == nil {
			continue
		}

		ev := cal.AddEvent(EventUID(e))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(*e.StartTime)
		ev.SetEndAt(*e.EffectiveEnd())
		ev.SetSummary(e.Title)
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if desc := description(e); desc != "" {
			ev.SetDescription(desc)
		}
		ev.SetProperty(ical.ComponentPropertyCategories, category(e))
		if e.Cancelled {
			ev.SetProperty(ical.ComponentPropertyStatus, "CANCELLED")
		}
		written++
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return 0, fmt.Errorf("write calendar: %w", err)
	}
	return written, nil
}

// EventUID is stable across exports so calendar apps update rather than
// duplicate entries.
func EventUID(e models.ScheduleEntry) string {
	return fmt.Sprintf("%s-%s@%s", e.Kind, e.ID, uidDomain)
}

func category(e models.ScheduleEntry) string {
	switch {
	case e.Kind == models.EntryKindEvent && e.EventType != "":
		return string(e.EventType)
	case e.Kind.IsActivity() && e.FezType != "":
		return string(e.FezType)
	default:
		return e.Kind.String()
	}
}

func description(e models.ScheduleEntry) string {
	label := cruisetime.DurationLabel(e.StartTime, e.EndTime, e.TimeZoneID, true)
	switch {
	case e.Kind == models.EntryKindJoinedActivity:
		if label == "" {
			return "Joined"
		}
		return label + " (joined)"
	case e.Favorite:
		if label == "" {
			return "Favorite"
		}
		return label + " (favorite)"
	default:
		return label
	}
}

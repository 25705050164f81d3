package schedule

import (
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/cruisetime"
	"github.com/vogiaan1904/voyage-sync/internal/models"
)

// LocateNowIndex returns the index of the first entry whose start offset is
// at or after nowDayTime. It returns 0 for an empty schedule or when now
// precedes every entry, and len-1 when now is past every entry.
func LocateNowIndex(
	nowDayTime float64,
	schedule models.AggregatedSchedule,
	voyageStart, voyageEnd time.Time,
	loc *time.Location,
) int {
	if len(schedule) == 0 {
		return 0
	}

	for i, e := range schedule {
		if e.StartTime == nil {
			continue
		}
		if cruisetime.DayTimeOffset(*e.StartTime, voyageStart, voyageEnd, loc) >= nowDayTime {
			return i
		}
	}
	return len(schedule) - 1
}

// NowDayTime is the voyage offset of now.
func NowDayTime(now time.Time, voyage cruisetime.Voyage) float64 {
	return voyage.DayTimeOffset(now)
}

// LocateNow is LocateNowIndex evaluated for a voyage at the given instant.
func LocateNow(now time.Time, schedule models.AggregatedSchedule, voyage cruisetime.Voyage) int {
	loc := voyage.Location
	if loc == nil {
		loc = time.UTC
	}
	return LocateNowIndex(NowDayTime(now, voyage), schedule, voyage.Start, voyage.End(), loc)
}

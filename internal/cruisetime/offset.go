package cruisetime

import (
	"strings"
	"time"
)

// DayTimeOffset places instant on the voyage timeline: 0 at voyageStart,
// 1 at voyageEnd, unbounded outside. Whole days are counted on the ship-local
// calendar and the remainder is the local time of day, so the value orders
// instants the way the ship's clocks do. A degenerate voyage (end <= start)
// yields raw elapsed days.
func DayTimeOffset(instant, voyageStart, voyageEnd time.Time, loc *time.Location) float64 {
	if loc == nil {
		loc = time.UTC
	}

	local := instant.In(loc)
	days := float64(localDaysBetween(voyageStart, local, loc))
	minutes := float64(local.Hour()*60+local.Minute()) + float64(local.Second())/60
	elapsed := days + minutes/minutesPerDay

	span := float64(localDaysBetween(voyageStart, voyageEnd, loc))
	if span <= 0 {
		return elapsed
	}
	return elapsed / span
}

// DayTimeOffset is the voyage-bound form of the package func.
func (v Voyage) DayTimeOffset(instant time.Time) float64 {
	return DayTimeOffset(instant, v.Start, v.End(), v.location())
}

// ResolveLocation loads an IANA zone, falling back to UTC for empty or
// unknown identifiers.
func ResolveLocation(id string) *time.Location {
	id = strings.TrimSpace(id)
	if id == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return time.UTC
	}
	return loc
}

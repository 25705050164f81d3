package cruisetime

import "time"

const (
	clockLayout = "3:04 PM"
	dayLayout   = "Mon"
)

// DurationLabel renders "3:00 PM - 4:30 PM" in the given zone, prefixed with
// the weekday when includeDay is set. An end on a later local date always
// carries its own weekday. Returns "" when either bound is absent.
func DurationLabel(start, end *time.Time, timeZoneID string, includeDay bool) string {
	if start == nil || end == nil {
		return ""
	}

	loc := ResolveLocation(timeZoneID)
	s := start.In(loc)
	e := end.In(loc)

	label := s.Format(clockLayout)
	if includeDay {
		label = s.Format(dayLayout) + " " + label
	}

	endLabel := e.Format(clockLayout)
	if localDaysBetween(s, e, loc) != 0 {
		endLabel = e.Format(dayLayout) + " " + endLabel
	}

	return label + " - " + endLabel
}

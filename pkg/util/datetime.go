package util

import "time"

const (
	DateFormat    = "2006-01-02"
	ISO8601Format = "2006-01-02T15:04:05Z07:00"
)

func TimeToISO8601Str(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ISO8601Format)
}

func TimePtrToISO8601Str(t *time.Time) string {
	if t == nil {
		return ""
	}
	return TimeToISO8601Str(*t)
}

func ParseISO8601(s string) (time.Time, error) {
	return time.Parse(ISO8601Format, s)
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, loc)
}

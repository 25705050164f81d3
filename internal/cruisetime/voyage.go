package cruisetime

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/pkg/util"
)

const minutesPerDay = 24 * 60

// Voyage describes one sailing: the embarkation date in the ship's base
// timezone and a fixed number of days.
type Voyage struct {
	Start    time.Time
	Length   int
	Location *time.Location
}

// NewVoyage builds a Voyage from a YYYY-MM-DD start date.
func NewVoyage(startDate string, length int, tzID string) (Voyage, error) {
	if length <= 0 {
		return Voyage{}, fmt.Errorf("%w: %d", ErrInvalidVoyageLength, length)
	}

	loc := ResolveLocation(tzID)
	start, err := util.ParseDate(startDate, loc)
	if err != nil {
		return Voyage{}, fmt.Errorf("parse voyage start %q: %w", startDate, err)
	}

	return Voyage{Start: start, Length: length, Location: loc}, nil
}

// End is the local midnight following the last cruise day.
func (v Voyage) End() time.Time {
	return addLocalDays(v.Start, v.Length, v.location())
}

func (v Voyage) CruiseDayForInstant(instant time.Time) (models.CruiseDay, error) {
	return CruiseDayForInstant(instant, v.Start, v.Length, v.location())
}

// Day returns the CruiseDay with the given 1-based ordinal.
func (v Voyage) Day(ordinal int) (models.CruiseDay, error) {
	if ordinal < 1 || ordinal > v.Length {
		return models.CruiseDay{}, fmt.Errorf("%w: day %d of %d", ErrOutOfVoyageRange, ordinal, v.Length)
	}
	return models.CruiseDay{
		Ordinal: ordinal,
		Date:    addLocalDays(v.Start, ordinal-1, v.location()),
	}, nil
}

// Days enumerates every cruise day with a daily recurrence anchored at
// embarkation midnight.
func (v Voyage) Days() ([]models.CruiseDay, error) {
	loc := v.location()
	start := localMidnight(v.Start, loc)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   v.Length,
		Dtstart: start,
	})
	if err != nil {
		return nil, fmt.Errorf("build cruise day rule: %w", err)
	}

	occurrences := r.All()
	days := make([]models.CruiseDay, 0, len(occurrences))
	for i, occ := range occurrences {
		days = append(days, models.CruiseDay{
			Ordinal: i + 1,
			Date:    localMidnight(occ, loc),
		})
	}
	return days, nil
}

func (v Voyage) location() *time.Location {
	if v.Location == nil {
		return time.UTC
	}
	return v.Location
}

// CruiseDayForInstant returns the 1-based cruise day containing instant,
// counted in whole ship-local calendar days from voyageStart. It never clamps:
// instants outside the voyage fail with ErrOutOfVoyageRange.
func CruiseDayForInstant(instant, voyageStart time.Time, length int, loc *time.Location) (models.CruiseDay, error) {
	if loc == nil {
		loc = time.UTC
	}

	elapsed := localDaysBetween(voyageStart, instant, loc)
	if elapsed < 0 || elapsed >= length {
		return models.CruiseDay{}, fmt.Errorf("%w: %s is day %d of %d",
			ErrOutOfVoyageRange, instant.In(loc).Format(time.RFC3339), elapsed+1, length)
	}

	return models.CruiseDay{
		Ordinal: elapsed + 1,
		Date:    addLocalDays(voyageStart, elapsed, loc),
	}, nil
}

// localDaysBetween counts calendar days between the local dates of a and b,
// so DST transitions never produce a 23h or 25h "day".
func localDaysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func localMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func addLocalDays(t time.Time, days int, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, loc)
}

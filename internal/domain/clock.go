package domain

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source; tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for target dates and result
// timestamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock, in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}

// DayRange is the inclusive local-time window of one calendar day.
type DayRange struct {
	Date  time.Time // midnight, in Location
	Start time.Time
	End   time.Time
}

// DayOfYear returns the 1-based ordinal of the day.
func (r DayRange) DayOfYear() int { return r.Date.YearDay() }

// DayRangeIn returns the window for the calendar date of d in timezone tz.
func DayRangeIn(d time.Time, tz string) (DayRange, error) {
	loc, err := loadLocation(tz)
	if err != nil {
		return DayRange{}, err
	}
	y, m, day := d.Date()
	start := time.Date(y, m, day, 0, 0, 0, 0, loc)
	return DayRange{
		Date:  start,
		Start: start,
		End:   start.AddDate(0, 0, 1).Add(-time.Second),
	}, nil
}

// PreviousDay returns the day before the current local date in timezone tz.
func PreviousDay(tz string) (DayRange, error) {
	loc, err := loadLocation(tz)
	if err != nil {
		return DayRange{}, err
	}
	local := clock.Now().In(loc)
	return DayRangeIn(local.AddDate(0, 0, -1), tz)
}

func loadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

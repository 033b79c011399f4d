package availability

import (
	"fmt"
	"strings"
	"time"
)

// DaysPerWeek bounds every forward search over the weekly schedule.
const DaysPerWeek = 7

// Weekday identifies a day of the recurring weekly schedule using ISO numbering
// (Monday = 1 ... Sunday = 7). The zero value is not a valid weekday.
type Weekday uint8

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{
	Monday:    "monday",
	Tuesday:   "tuesday",
	Wednesday: "wednesday",
	Thursday:  "thursday",
	Friday:    "friday",
	Saturday:  "saturday",
	Sunday:    "sunday",
}

// FromTimeWeekday maps the standard library's Sunday-first index onto Weekday.
func FromTimeWeekday(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekday(d)
}

// WeekdayOf returns the weekday of t in t's own location.
func WeekdayOf(t time.Time) Weekday {
	return FromTimeWeekday(t.Weekday())
}

// Add moves forward (or backward for negative n) by n days, wrapping across the week boundary.
func (d Weekday) Add(n int) Weekday {
	idx := (int(d) - 1 + n) % DaysPerWeek
	if idx < 0 {
		idx += DaysPerWeek
	}
	return Weekday(idx + 1)
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", uint8(d))
	}
	return weekdayNames[d]
}

// ParseWeekday accepts an English day name, full or as its three-letter abbreviation
// ("monday", "mon"; any case), or its ISO number ("1".."7").
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := Monday; d <= Sunday; d++ {
		if weekdayNames[d] == s || weekdayNames[d][:3] == s {
			return d, nil
		}
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '7' {
		return Weekday(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

package availability

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a wall-clock time of day, stored as the offset from local midnight.
// It carries no date and no location.
type Clock time.Duration

const endOfDay = Clock(24 * time.Hour)

func NewClock(hour, minute, second int) Clock {
	return Clock(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

// ClockFromMinutes converts a minute-of-day value (as stored by the working-hours table).
func ClockFromMinutes(minutes int) Clock {
	return Clock(time.Duration(minutes) * time.Minute)
}

// ClockOf returns the wall-clock reading of t in t's own location.
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return NewClock(h, m, s) + Clock(t.Nanosecond())
}

// ParseClock accepts "15:04" or "15:04:05".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return ClockOf(t), nil
}

func (c Clock) Valid() bool {
	return c >= 0 && c < endOfDay
}

func (c Clock) WholeMinute() bool {
	return time.Duration(c)%time.Minute == 0
}

// Minutes truncates to whole minutes of the day.
func (c Clock) Minutes() int {
	return int(time.Duration(c) / time.Minute)
}

// On composes the calendar date of d with c and localizes the result to d.Location().
// The wall-clock value is interpreted in that location rather than shifted into it, so
// no UTC offset is applied twice.
func (c Clock) On(d time.Time) time.Time {
	y, m, dd := d.Date()
	return c.OnDate(y, m, dd, d.Location())
}

// OnDate builds the instant reading c on the given date in loc. Out-of-range days are
// normalized by time.Date, so dd+n rolls over month and year ends.
func (c Clock) OnDate(y int, m time.Month, dd int, loc *time.Location) time.Time {
	d := time.Duration(c)
	return time.Date(y, m, dd,
		int(d/time.Hour),
		int(d%time.Hour/time.Minute),
		int(d%time.Minute/time.Second),
		int(d%time.Second),
		loc,
	)
}

func (c Clock) String() string {
	d := time.Duration(c)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

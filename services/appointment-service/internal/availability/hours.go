package availability

import (
	"errors"
	"fmt"
)

var ErrInvalidWorkingHours = errors.New("invalid working hours")

// Interval is a closed wall-clock range: both Start and End are inside it.
type Interval struct {
	Start Clock
	End   Clock
}

func (i Interval) Contains(c Clock) bool {
	return i.Start <= c && c <= i.End
}

// WorkingHours is a provider's availability on one weekday, with at most one break.
// A provider has at most one record per weekday.
type WorkingHours struct {
	ProviderID string
	Weekday    Weekday
	Start      Clock
	End        Clock
	Break      *Interval
}

func (wh WorkingHours) Hours() Interval {
	return Interval{Start: wh.Start, End: wh.End}
}

// Validate enforces Start <= Break.Start <= Break.End <= End, on whole minutes since
// records are stored as minutes of the day. The resolver assumes records already
// passed this check; it is applied where records are written.
func (wh WorkingHours) Validate() error {
	if wh.ProviderID == "" {
		return fmt.Errorf("%w: provider id is required", ErrInvalidWorkingHours)
	}
	if !wh.Weekday.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidWorkingHours, wh.Weekday)
	}
	if !wh.Start.Valid() || !wh.End.Valid() {
		return fmt.Errorf("%w: start and end must be within the day", ErrInvalidWorkingHours)
	}
	if !wh.Start.WholeMinute() || !wh.End.WholeMinute() {
		return fmt.Errorf("%w: start and end must be whole minutes", ErrInvalidWorkingHours)
	}
	if wh.Start > wh.End {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWorkingHours, wh.Start, wh.End)
	}
	if wh.Break == nil {
		return nil
	}
	b := *wh.Break
	if !b.Start.WholeMinute() || !b.End.WholeMinute() {
		return fmt.Errorf("%w: break must be whole minutes", ErrInvalidWorkingHours)
	}
	if b.Start > b.End {
		return fmt.Errorf("%w: break start %s is after break end %s", ErrInvalidWorkingHours, b.Start, b.End)
	}
	if b.Start < wh.Start || b.End > wh.End {
		return fmt.Errorf("%w: break %s-%s is outside hours %s-%s", ErrInvalidWorkingHours, b.Start, b.End, wh.Start, wh.End)
	}
	return nil
}

package availability

import (
	"errors"
	"testing"
)

func TestWorkingHoursValidate(t *testing.T) {
	base := WorkingHours{ProviderID: "prov-1", Weekday: Monday, Start: NewClock(9, 0, 0), End: NewClock(17, 0, 0)}

	valid := base
	valid.Break = &Interval{Start: NewClock(12, 0, 0), End: NewClock(13, 0, 0)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}

	edge := base
	edge.Break = &Interval{Start: base.Start, End: base.End}
	if err := edge.Validate(); err != nil {
		t.Fatalf("break equal to hours should be accepted: %v", err)
	}

	withBreak := func(start, end Clock) WorkingHours {
		wh := base
		wh.Break = &Interval{Start: start, End: end}
		return wh
	}
	cases := []struct {
		name string
		wh   WorkingHours
	}{
		{"missing provider", WorkingHours{Weekday: Monday, Start: base.Start, End: base.End}},
		{"invalid weekday", WorkingHours{ProviderID: "p", Start: base.Start, End: base.End}},
		{"start after end", WorkingHours{ProviderID: "p", Weekday: Monday, Start: base.End, End: base.Start}},
		{"end past midnight", WorkingHours{ProviderID: "p", Weekday: Monday, Start: base.Start, End: NewClock(24, 0, 0)}},
		{"break reversed", withBreak(NewClock(13, 0, 0), NewClock(12, 0, 0))},
		{"break outside hours", withBreak(NewClock(16, 30, 0), NewClock(17, 30, 0))},
		{"start with seconds", WorkingHours{ProviderID: "p", Weekday: Monday, Start: NewClock(9, 0, 30), End: base.End}},
		{"break with seconds", withBreak(NewClock(12, 0, 0), NewClock(12, 59, 59))},
	}
	for _, tc := range cases {
		err := tc.wh.Validate()
		if !errors.Is(err, ErrInvalidWorkingHours) {
			t.Fatalf("%s: expected ErrInvalidWorkingHours, got %v", tc.name, err)
		}
	}
}

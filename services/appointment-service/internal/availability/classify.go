package availability

// Classification places a wall-clock time relative to one day's working hours.
type Classification int

const (
	// NoAvailability means the provider has no record for the day. Callers roll over
	// exactly as for AfterHours.
	NoAvailability Classification = iota
	BeforeHours
	InHours
	InBreak
	AfterHours
)

func (c Classification) String() string {
	switch c {
	case NoAvailability:
		return "no_availability"
	case BeforeHours:
		return "before_hours"
	case InHours:
		return "in_hours"
	case InBreak:
		return "in_break"
	case AfterHours:
		return "after_hours"
	default:
		return "unknown"
	}
}

// Classify reports where c falls in wh. Both ends of the hours and of the break are
// inclusive; the break is checked first so a time on a shared boundary is InBreak.
func Classify(c Clock, wh *WorkingHours) Classification {
	if wh == nil {
		return NoAvailability
	}
	if wh.Break != nil && wh.Break.Contains(c) {
		return InBreak
	}
	switch {
	case c < wh.Start:
		return BeforeHours
	case c > wh.End:
		return AfterHours
	default:
		return InHours
	}
}

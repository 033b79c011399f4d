package availability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoAvailability is returned when a provider has no working hours on any weekday.
var ErrNoAvailability = errors.New("provider has no working hours on any weekday")

// Lookup reads a provider's working hours for one weekday. A missing record is reported
// with ok == false and a nil error.
type Lookup interface {
	WorkingHours(ctx context.Context, providerID string, day Weekday) (WorkingHours, bool, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, providerID string, day Weekday) (WorkingHours, bool, error)

func (f LookupFunc) WorkingHours(ctx context.Context, providerID string, day Weekday) (WorkingHours, bool, error) {
	return f(ctx, providerID, day)
}

// Policy holds the grace periods added to a computed boundary.
type Policy struct {
	InHoursGrace    time.Duration
	AfterBreakGrace time.Duration
	NextWindowGrace time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		InHoursGrace:    20 * time.Minute,
		AfterBreakGrace: 15 * time.Minute,
		NextWindowGrace: 15 * time.Minute,
	}
}

// Resolution describes one expiration decision.
type Resolution struct {
	ProviderID     string
	Reference      time.Time
	Classification Classification
	// Available is false when the provider has no working hours at all.
	Available bool
	// NextStart is set when the decision rolled over to a later working period.
	NextStart time.Time
	// DaysAhead is the day offset of NextStart from the reference date.
	DaysAhead int
	ExpiresAt time.Time
}

type Resolver struct {
	lookup Lookup
	policy Policy
	sink   Sink
}

type Option func(*Resolver)

// WithPolicy overrides grace periods; zero fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) {
		if p.InHoursGrace > 0 {
			r.policy.InHoursGrace = p.InHoursGrace
		}
		if p.AfterBreakGrace > 0 {
			r.policy.AfterBreakGrace = p.AfterBreakGrace
		}
		if p.NextWindowGrace > 0 {
			r.policy.NextWindowGrace = p.NextWindowGrace
		}
	}
}

func WithSink(s Sink) Option {
	return func(r *Resolver) {
		if s != nil {
			r.sink = s
		}
	}
}

func NewResolver(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{lookup: lookup, policy: DefaultPolicy(), sink: NopSink{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Policy() Policy {
	return r.policy
}

// Classify looks up the provider's record for at's weekday and classifies at's wall clock.
// It also returns the record when one exists.
func (r *Resolver) Classify(ctx context.Context, at time.Time, providerID string) (Classification, *WorkingHours, error) {
	day := WeekdayOf(at)
	wh, ok, err := r.lookup.WorkingHours(ctx, providerID, day)
	if err != nil {
		return NoAvailability, nil, fmt.Errorf("lookup %s working hours: %w", day, err)
	}
	if !ok {
		return NoAvailability, nil, nil
	}
	return Classify(ClockOf(at), &wh), &wh, nil
}

// NextStart returns the start of the first working period strictly after ref, in ref's
// location. ok is false only when the provider has no working hours on any weekday.
func (r *Resolver) NextStart(ctx context.Context, ref time.Time, providerID string) (time.Time, bool, error) {
	start, _, ok, err := r.scan(ctx, ref, providerID, nil)
	return start, ok, err
}

// Expiration computes when a request made at ref stops being acceptable.
func (r *Resolver) Expiration(ctx context.Context, ref time.Time, providerID string) (time.Time, error) {
	res, err := r.Resolve(ctx, ref, providerID)
	if err != nil {
		return time.Time{}, err
	}
	return res.ExpiresAt, nil
}

// Resolve is Expiration with the intermediate decision attached. It returns
// ErrNoAvailability (alongside the partial Resolution) when nothing can be scheduled.
func (r *Resolver) Resolve(ctx context.Context, ref time.Time, providerID string) (Resolution, error) {
	res := Resolution{ProviderID: providerID, Reference: ref, Available: true}

	day := WeekdayOf(ref)
	wh, ok, err := r.lookup.WorkingHours(ctx, providerID, day)
	if err != nil {
		return res, fmt.Errorf("lookup %s working hours: %w", day, err)
	}
	var today *WorkingHours
	if ok {
		today = &wh
	}
	res.Classification = Classify(ClockOf(ref), today)

	switch res.Classification {
	case InHours:
		res.ExpiresAt = ref.Add(r.policy.InHoursGrace)
	case InBreak:
		res.ExpiresAt = today.Break.End.On(ref).Add(r.policy.AfterBreakGrace)
	default:
		start, ahead, found, err := r.scan(ctx, ref, providerID, &dayRecord{wh: wh, ok: ok})
		if err != nil {
			return res, err
		}
		if !found {
			res.Available = false
			r.sink.Resolved(ctx, res)
			return res, ErrNoAvailability
		}
		res.NextStart = start
		res.DaysAhead = ahead
		res.ExpiresAt = start.Add(r.policy.NextWindowGrace)
	}

	r.sink.Resolved(ctx, res)
	return res, nil
}

type dayRecord struct {
	wh WorkingHours
	ok bool
}

// scan walks forward from ref's date one day at a time, at most DaysPerWeek lookups.
// today, when non-nil, is the already fetched record for ref's weekday.
func (r *Resolver) scan(ctx context.Context, ref time.Time, providerID string, today *dayRecord) (time.Time, int, bool, error) {
	y, m, d := ref.Date()
	loc := ref.Location()
	first := WeekdayOf(ref)

	var startedToday *WorkingHours
	for offset := 0; offset < DaysPerWeek; offset++ {
		var (
			wh  WorkingHours
			ok  bool
			err error
		)
		if offset == 0 && today != nil {
			wh, ok = today.wh, today.ok
		} else {
			day := first.Add(offset)
			wh, ok, err = r.lookup.WorkingHours(ctx, providerID, day)
			if err != nil {
				return time.Time{}, offset, false, fmt.Errorf("lookup %s working hours: %w", day, err)
			}
		}
		if !ok {
			continue
		}

		candidate := wh.Start.OnDate(y, m, d+offset, loc)
		if candidate.After(ref) {
			return candidate, offset, true, nil
		}
		if offset == 0 {
			startedToday = &wh
		}
	}

	// Today's period already began and no other weekday has hours: the same weekday
	// next week is the next period.
	if startedToday != nil {
		return startedToday.Start.OnDate(y, m, d+DaysPerWeek, loc), DaysPerWeek, true, nil
	}
	return time.Time{}, DaysPerWeek, false, nil
}

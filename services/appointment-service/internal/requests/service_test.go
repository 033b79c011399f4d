package requests

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/model"
)

// memStore is an in-memory Store. Its mutex plays the role of the row lock.
type memStore struct {
	mu     sync.Mutex
	nextID int
	rows   map[string]model.AppointmentRequest
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]model.AppointmentRequest{}}
}

func (m *memStore) Create(_ context.Context, req *model.AppointmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	req.ID = "req-" + strconv.Itoa(m.nextID)
	req.CreatedAt = req.RequestedAt
	m.rows[req.ID] = *req
	return nil
}

func (m *memStore) Accept(_ context.Context, providerID, requestID string, now time.Time) (model.AppointmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.rows[requestID]
	if !ok || req.ProviderID != providerID {
		return model.AppointmentRequest{}, apperr.ErrNotFound
	}
	err := req.Accept(now)
	m.rows[requestID] = req
	return req, err
}

func (m *memStore) ListOpen(_ context.Context, providerID string, limit int) ([]model.AppointmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AppointmentRequest
	for _, req := range m.rows {
		if req.ProviderID == providerID && !req.Status.Terminal() {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type week map[availability.Weekday]availability.WorkingHours

func (w week) WorkingHours(_ context.Context, providerID string, day availability.Weekday) (availability.WorkingHours, bool, error) {
	wh, ok := w[day]
	wh.ProviderID = providerID
	wh.Weekday = day
	return wh, ok, nil
}

// Monday 09:00-17:00 with a 12:00-13:00 break, Wednesday 09:00-17:00.
func standardWeek() week {
	return week{
		availability.Monday: {
			Start: availability.NewClock(9, 0, 0),
			End:   availability.NewClock(17, 0, 0),
			Break: &availability.Interval{Start: availability.NewClock(12, 0, 0), End: availability.NewClock(13, 0, 0)},
		},
		availability.Wednesday: {
			Start: availability.NewClock(9, 0, 0),
			End:   availability.NewClock(17, 0, 0),
		},
	}
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// 2024-01-01 is a Monday.
func monday(h, m int) time.Time {
	return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC)
}

func newTestService(w week) (*Service, *memStore, *fixedClock) {
	store := newMemStore()
	clock := &fixedClock{t: monday(10, 0)}
	svc := NewService(store, availability.NewResolver(w), WithClock(clock.Now))
	return svc, store, clock
}

func TestCreateRejectsTimesOutsideAvailability(t *testing.T) {
	svc, _, _ := newTestService(standardWeek())
	cases := []struct {
		name      string
		preferred time.Time
		want      error
	}{
		{"tuesday has no record", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), apperr.ErrUnavailable},
		{"before start", monday(8, 59), apperr.ErrOutOfHours},
		{"after end", monday(17, 1), apperr.ErrOutOfHours},
		{"break start", monday(12, 0), apperr.ErrDuringBreak},
		{"inside break", monday(12, 30), apperr.ErrDuringBreak},
		{"break end", monday(13, 0), apperr.ErrDuringBreak},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), CreateInput{
				PatientID:     "patient-1",
				ProviderID:    "prov-1",
				PreferredTime: tc.preferred,
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(standardWeek())
	_, err := svc.Create(context.Background(), CreateInput{ProviderID: "prov-1", PreferredTime: monday(10, 0)})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Create(context.Background(), CreateInput{PatientID: "patient-1", ProviderID: "prov-1"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateComputesExpiry(t *testing.T) {
	cases := []struct {
		name        string
		requestedAt time.Time
		want        time.Time
	}{
		{"in hours", monday(10, 0), monday(10, 20)},
		{"in break", monday(12, 30), monday(13, 15)},
		{"after hours rolls to wednesday", monday(18, 0), time.Date(2024, 1, 3, 9, 15, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService(standardWeek())
			req, err := svc.Create(context.Background(), CreateInput{
				PatientID:     "patient-1",
				ProviderID:    "prov-1",
				PreferredTime: time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
				RequestedAt:   tc.requestedAt,
			})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if !req.ExpiresAt.Equal(tc.want) {
				t.Fatalf("expected expiry %s, got %s", tc.want, req.ExpiresAt)
			}
			if req.Status != model.StatusPending || req.ID == "" {
				t.Fatalf("unexpected request %+v", req)
			}
		})
	}
}

func TestCreateDefaultsRequestedAtToClock(t *testing.T) {
	svc, _, clock := newTestService(standardWeek())
	clock.Set(monday(11, 0))
	req, err := svc.Create(context.Background(), CreateInput{
		PatientID:     "patient-1",
		ProviderID:    "prov-1",
		PreferredTime: monday(15, 0),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !req.RequestedAt.Equal(monday(11, 0)) || !req.ExpiresAt.Equal(monday(11, 20)) {
		t.Fatalf("unexpected times requested=%s expires=%s", req.RequestedAt, req.ExpiresAt)
	}
}

func TestCreateDefaultsRequestedAtToPreferredZone(t *testing.T) {
	tokyo := time.FixedZone("UTC+9", 9*3600)
	svc, _, clock := newTestService(standardWeek())
	// 10:00 on Monday in UTC+9 is still 01:00 UTC, before hours on the host's clock.
	clock.Set(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC))

	req, err := svc.Create(context.Background(), CreateInput{
		PatientID:     "patient-1",
		ProviderID:    "prov-1",
		PreferredTime: time.Date(2024, 1, 1, 15, 0, 0, 0, tokyo),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.RequestedAt.Location() != tokyo {
		t.Fatalf("expected requested_at in %s, got %s", tokyo, req.RequestedAt.Location())
	}
	want := time.Date(2024, 1, 1, 10, 20, 0, 0, tokyo)
	if !req.ExpiresAt.Equal(want) {
		t.Fatalf("expected in-hours expiry %s, got %s", want, req.ExpiresAt)
	}
}

// Scenario E: late acceptance expires the request; a second acceptance is refused.
func TestAcceptLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("after expiry", func(t *testing.T) {
		svc, store, clock := newTestService(standardWeek())
		req, err := svc.Create(ctx, CreateInput{PatientID: "p", ProviderID: "prov-1", PreferredTime: monday(15, 0), RequestedAt: monday(10, 0)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		clock.Set(monday(10, 21))
		if _, err := svc.Accept(ctx, "prov-1", req.ID); !errors.Is(err, apperr.ErrExpired) {
			t.Fatalf("expected ErrExpired, got %v", err)
		}
		if got := store.rows[req.ID].Status; got != model.StatusExpired {
			t.Fatalf("expected stored status expired, got %s", got)
		}
		if _, err := svc.Accept(ctx, "prov-1", req.ID); !errors.Is(err, apperr.ErrExpired) {
			t.Fatalf("expected ErrExpired on retry, got %v", err)
		}
	})

	t.Run("twice", func(t *testing.T) {
		svc, _, clock := newTestService(standardWeek())
		req, err := svc.Create(ctx, CreateInput{PatientID: "p", ProviderID: "prov-1", PreferredTime: monday(15, 0), RequestedAt: monday(10, 0)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		clock.Set(monday(10, 20))
		accepted, err := svc.Accept(ctx, "prov-1", req.ID)
		if err != nil {
			t.Fatalf("Accept at the expiry instant should succeed: %v", err)
		}
		if accepted.Status != model.StatusAccepted || accepted.AcceptedAt == nil || !accepted.AcceptedAt.Equal(monday(10, 20)) {
			t.Fatalf("unexpected accepted request %+v", accepted)
		}
		if _, err := svc.Accept(ctx, "prov-1", req.ID); !errors.Is(err, apperr.ErrAlreadyAccepted) {
			t.Fatalf("expected ErrAlreadyAccepted, got %v", err)
		}
	})

	t.Run("unknown or foreign id", func(t *testing.T) {
		svc, _, _ := newTestService(standardWeek())
		req, err := svc.Create(ctx, CreateInput{PatientID: "p", ProviderID: "prov-1", PreferredTime: monday(15, 0)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := svc.Accept(ctx, "prov-2", req.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for another provider, got %v", err)
		}
		if _, err := svc.Accept(ctx, "prov-1", "missing"); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(standardWeek())
	req, err := svc.Create(ctx, CreateInput{PatientID: "p", ProviderID: "prov-1", PreferredTime: monday(15, 0)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Accept(ctx, "prov-1", req.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, refused int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, apperr.ErrAlreadyAccepted):
			refused++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if won != 1 || refused != attempts-1 {
		t.Fatalf("expected exactly one winner, got won=%d refused=%d", won, refused)
	}
}

func TestListOpenExcludesTerminalRequests(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(standardWeek())

	var ids []string
	for i := 0; i < 3; i++ {
		req, err := svc.Create(ctx, CreateInput{PatientID: "p", ProviderID: "prov-1", PreferredTime: monday(15, 0), RequestedAt: monday(10, i)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, req.ID)
	}
	if _, err := svc.Accept(ctx, "prov-1", ids[0]); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	clock.Set(monday(11, 0))
	if _, err := svc.Accept(ctx, "prov-1", ids[1]); !errors.Is(err, apperr.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	open, err := svc.ListOpen(ctx, "prov-1", 10)
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(open) != 1 || open[0].ID != ids[2] {
		t.Fatalf("expected only %s to be open, got %+v", ids[2], open)
	}
}

func TestPreview(t *testing.T) {
	svc, _, _ := newTestService(standardWeek())
	res, err := svc.Preview(context.Background(), "prov-1", monday(18, 0), nil)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.Classification != availability.AfterHours || res.DaysAhead != 2 {
		t.Fatalf("unexpected resolution %+v", res)
	}

	empty, _, _ := newTestService(week{})
	if _, err := empty.Preview(context.Background(), "prov-1", monday(10, 0), nil); !errors.Is(err, apperr.ErrNoAvailability) {
		t.Fatalf("expected ErrNoAvailability, got %v", err)
	}
	if _, err := svc.Preview(context.Background(), "", monday(10, 0), nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPreviewDefaultsToNow(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(standardWeek())

	res, err := svc.Preview(ctx, "prov-1", time.Time{}, nil)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.Classification != availability.InHours || res.Reference.Location() != time.UTC || !res.ExpiresAt.Equal(monday(10, 20)) {
		t.Fatalf("expected UTC in-hours preview, got %+v", res)
	}

	// The same instant is 19:00 in UTC+9, after hours there.
	tokyo := time.FixedZone("UTC+9", 9*3600)
	res, err = svc.Preview(ctx, "prov-1", time.Time{}, tokyo)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.Classification != availability.AfterHours || res.DaysAhead != 2 || !res.NextStart.Equal(time.Date(2024, 1, 3, 9, 0, 0, 0, tokyo)) {
		t.Fatalf("expected rollover to Wednesday in UTC+9, got %+v", res)
	}
}

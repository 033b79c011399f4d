package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("apptrequests/requests")

// Store persists appointment requests. Accept must serialize concurrent calls for the
// same request so exactly one of them observes it pending.
type Store interface {
	Create(ctx context.Context, req *model.AppointmentRequest) error
	Accept(ctx context.Context, providerID, requestID string, now time.Time) (model.AppointmentRequest, error)
	ListOpen(ctx context.Context, providerID string, limit int) ([]model.AppointmentRequest, error)
}

type Service struct {
	store    Store
	resolver *availability.Resolver
	now      func() time.Time
	metrics  *metrics.Requests
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMetrics(m *metrics.Requests) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, resolver *availability.Resolver, opts ...Option) *Service {
	s := &Service{store: store, resolver: resolver, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	PatientID     string
	ProviderID    string
	PreferredTime time.Time
	// RequestedAt defaults to the service clock. Its location is the zone every
	// returned instant is expressed in.
	RequestedAt time.Time
}

// Create checks the preferred time against the provider's hours for that weekday,
// computes the expiry from RequestedAt and stores a pending request.
func (s *Service) Create(ctx context.Context, in CreateInput) (req model.AppointmentRequest, err error) {
	ctx, span := tracer.Start(ctx, "requests.create")
	defer func() { s.finish(span, "create", err) }()
	span.SetAttributes(
		attribute.String("provider.id", in.ProviderID),
		attribute.String("patient.id", in.PatientID),
	)

	in.PatientID = strings.TrimSpace(in.PatientID)
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	switch {
	case in.PatientID == "":
		return model.AppointmentRequest{}, apperr.Wrap(nil, apperr.ErrValidation, "patient_id is required")
	case in.ProviderID == "":
		return model.AppointmentRequest{}, apperr.Wrap(nil, apperr.ErrValidation, "provider_id is required")
	case in.PreferredTime.IsZero():
		return model.AppointmentRequest{}, apperr.Wrap(nil, apperr.ErrValidation, "preferred_time is required")
	}

	class, _, err := s.resolver.Classify(ctx, in.PreferredTime, in.ProviderID)
	if err != nil {
		return model.AppointmentRequest{}, err
	}
	switch class {
	case availability.NoAvailability:
		return model.AppointmentRequest{}, apperr.ErrUnavailable
	case availability.BeforeHours, availability.AfterHours:
		return model.AppointmentRequest{}, apperr.ErrOutOfHours
	case availability.InBreak:
		return model.AppointmentRequest{}, apperr.ErrDuringBreak
	}

	// A defaulted request instant is read in the preferred time's zone, never the host's.
	requestedAt := in.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = s.now().In(in.PreferredTime.Location())
	}
	expiresAt, err := s.resolver.Expiration(ctx, requestedAt, in.ProviderID)
	if err != nil {
		return model.AppointmentRequest{}, mapResolverError(err)
	}

	req = model.AppointmentRequest{
		PatientID:     in.PatientID,
		ProviderID:    in.ProviderID,
		PreferredTime: in.PreferredTime,
		RequestedAt:   requestedAt,
		ExpiresAt:     expiresAt,
		Status:        model.StatusPending,
	}
	if err := s.store.Create(ctx, &req); err != nil {
		return model.AppointmentRequest{}, fmt.Errorf("store appointment request: %w", err)
	}
	span.SetAttributes(attribute.String("request.id", req.ID))
	return req, nil
}

// Accept moves a pending request to accepted at the service clock's now.
func (s *Service) Accept(ctx context.Context, providerID, requestID string) (req model.AppointmentRequest, err error) {
	ctx, span := tracer.Start(ctx, "requests.accept")
	defer func() { s.finish(span, "accept", err) }()
	span.SetAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("request.id", requestID),
	)

	if strings.TrimSpace(requestID) == "" {
		return model.AppointmentRequest{}, apperr.Wrap(nil, apperr.ErrValidation, "request_id is required")
	}
	return s.store.Accept(ctx, providerID, requestID, s.now())
}

// ListOpen returns the provider's requests that are neither accepted nor expired.
func (s *Service) ListOpen(ctx context.Context, providerID string, limit int) (out []model.AppointmentRequest, err error) {
	ctx, span := tracer.Start(ctx, "requests.list_open")
	defer func() { s.finish(span, "list_open", err) }()
	span.SetAttributes(attribute.String("provider.id", providerID))

	return s.store.ListOpen(ctx, providerID, limit)
}

// Preview resolves the expiry a request made at `at` would get, without storing anything.
// A zero at means now, read in loc; a nil loc falls back to UTC.
func (s *Service) Preview(ctx context.Context, providerID string, at time.Time, loc *time.Location) (res availability.Resolution, err error) {
	ctx, span := tracer.Start(ctx, "requests.preview")
	defer func() { s.finish(span, "preview", err) }()
	span.SetAttributes(attribute.String("provider.id", providerID))

	if strings.TrimSpace(providerID) == "" {
		return availability.Resolution{}, apperr.Wrap(nil, apperr.ErrValidation, "provider_id is required")
	}
	if at.IsZero() {
		if loc == nil {
			loc = time.UTC
		}
		at = s.now().In(loc)
	}
	res, err = s.resolver.Resolve(ctx, at, providerID)
	if err != nil {
		return res, mapResolverError(err)
	}
	return res, nil
}

func mapResolverError(err error) error {
	if errors.Is(err, availability.ErrNoAvailability) {
		return apperr.Wrap(err, apperr.ErrNoAvailability, "")
	}
	return fmt.Errorf("resolve expiration: %w", err)
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	outcome := "ok"
	if err != nil {
		ae := apperr.FromError(err)
		outcome = ae.Code
		if ae.Status >= 500 {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, ae.Code)
	}
	s.metrics.Observe(operation, outcome)
	span.End()
}

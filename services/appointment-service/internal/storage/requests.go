package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptrequests/libs/db"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/outbox"
)

const aggregateRequest = "appointment_request"

type RequestRepository struct {
	conn   db.Conn
	outbox *outbox.Repository
}

func NewRequestRepository(conn db.Conn, ob *outbox.Repository) *RequestRepository {
	if ob == nil {
		ob = outbox.NewRepository()
	}
	return &RequestRepository{conn: conn, outbox: ob}
}

// Create inserts a pending request and its created event in one transaction. An empty
// ID is filled with a new UUID.
func (r *RequestRepository) Create(ctx context.Context, req *model.AppointmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	tzName, tzOffset := zoneOf(req.RequestedAt)

	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO appointment_requests
			(id, patient_id, provider_id, preferred_time, requested_at, expires_at, status, tz_name, tz_offset)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, req.ID, req.PatientID, req.ProviderID, req.PreferredTime, req.RequestedAt, req.ExpiresAt,
		string(req.Status), tzName, tzOffset).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("insert appointment request: %w", err)
	}
	req.CreatedAt = createdAt.In(req.RequestedAt.Location())

	if err := r.writeEvent(ctx, tx, outbox.EventRequestCreated, *req); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *RequestRepository) Get(ctx context.Context, providerID, requestID string) (model.AppointmentRequest, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM appointment_requests
		WHERE id = $1 AND provider_id = $2
	`, requestID, providerID)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AppointmentRequest{}, apperr.ErrNotFound
	}
	return req, err
}

// Accept locks the request row, applies the acceptance transition at now and persists
// the resulting status. A request found past its expiry is stored as expired before
// apperr.ErrExpired is returned.
func (r *RequestRepository) Accept(ctx context.Context, providerID, requestID string, now time.Time) (model.AppointmentRequest, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return model.AppointmentRequest{}, apperr.ErrNotFound
	}

	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return model.AppointmentRequest{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM appointment_requests
		WHERE id = $1 AND provider_id = $2
		FOR UPDATE
	`, requestID, providerID)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AppointmentRequest{}, apperr.ErrNotFound
	}
	if err != nil {
		return model.AppointmentRequest{}, fmt.Errorf("lock appointment request: %w", err)
	}

	before := req.Status
	transitionErr := req.Accept(now.In(req.RequestedAt.Location()))
	if req.Status == before {
		return req, transitionErr
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointment_requests
		SET status = $2,
			accepted_at = $3,
			updated_at = now()
		WHERE id = $1
	`, req.ID, string(req.Status), req.AcceptedAt)
	if err != nil {
		return model.AppointmentRequest{}, fmt.Errorf("update appointment request: %w", err)
	}

	eventType := outbox.EventRequestAccepted
	if req.Status == model.StatusExpired {
		eventType = outbox.EventRequestExpired
	}
	if err := r.writeEvent(ctx, tx, eventType, req); err != nil {
		return model.AppointmentRequest{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.AppointmentRequest{}, err
	}
	return req, transitionErr
}

// ListOpen returns the provider's pending requests, oldest first.
func (r *RequestRepository) ListOpen(ctx context.Context, providerID string, limit int) ([]model.AppointmentRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn.Query(ctx, `
		SELECT `+requestColumns+`
		FROM appointment_requests
		WHERE provider_id = $1 AND status = $2
		ORDER BY requested_at
		LIMIT $3
	`, providerID, string(model.StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

const requestColumns = `id::text, patient_id, provider_id, preferred_time, requested_at, expires_at, status, accepted_at, tz_name, tz_offset, created_at`

func scanRequest(row pgx.Row) (model.AppointmentRequest, error) {
	var (
		req        model.AppointmentRequest
		status     string
		acceptedAt *time.Time
		tzName     string
		tzOffset   int
	)
	err := row.Scan(
		&req.ID,
		&req.PatientID,
		&req.ProviderID,
		&req.PreferredTime,
		&req.RequestedAt,
		&req.ExpiresAt,
		&status,
		&acceptedAt,
		&tzName,
		&tzOffset,
		&req.CreatedAt,
	)
	if err != nil {
		return model.AppointmentRequest{}, err
	}
	req.Status = model.Status(status)

	loc := restoreZone(tzName, tzOffset)
	req.PreferredTime = req.PreferredTime.In(loc)
	req.RequestedAt = req.RequestedAt.In(loc)
	req.ExpiresAt = req.ExpiresAt.In(loc)
	req.CreatedAt = req.CreatedAt.In(loc)
	if acceptedAt != nil {
		t := acceptedAt.In(loc)
		req.AcceptedAt = &t
	}
	return req, nil
}

type requestEvent struct {
	RequestID     string     `json:"request_id"`
	PatientID     string     `json:"patient_id"`
	ProviderID    string     `json:"provider_id"`
	PreferredTime time.Time  `json:"preferred_time"`
	RequestedAt   time.Time  `json:"requested_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Status        string     `json:"status"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
}

func (r *RequestRepository) writeEvent(ctx context.Context, tx pgx.Tx, eventType string, req model.AppointmentRequest) error {
	payload, err := json.Marshal(requestEvent{
		RequestID:     req.ID,
		PatientID:     req.PatientID,
		ProviderID:    req.ProviderID,
		PreferredTime: req.PreferredTime,
		RequestedAt:   req.RequestedAt,
		ExpiresAt:     req.ExpiresAt,
		Status:        string(req.Status),
		AcceptedAt:    req.AcceptedAt,
	})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: aggregateRequest,
		AggregateID:   req.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	return nil
}

package model

import (
	"time"

	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/apperr"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
)

func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusExpired
}

// AppointmentRequest is a patient's request for a provider's time. ExpiresAt is fixed
// at creation; expiry is only detected when someone tries to accept.
type AppointmentRequest struct {
	ID            string
	PatientID     string
	ProviderID    string
	PreferredTime time.Time
	RequestedAt   time.Time
	ExpiresAt     time.Time
	Status        Status
	AcceptedAt    *time.Time
	CreatedAt     time.Time
}

// Accept applies the acceptance transition at now. Expiry is checked first: past
// ExpiresAt the result is ErrExpired whatever the status, and a pending request is
// moved to StatusExpired. Within the window an accepted request yields ErrAlreadyAccepted.
func (r *AppointmentRequest) Accept(now time.Time) error {
	if now.After(r.ExpiresAt) {
		if r.Status == StatusPending {
			r.Status = StatusExpired
		}
		return apperr.ErrExpired
	}
	switch r.Status {
	case StatusAccepted:
		return apperr.ErrAlreadyAccepted
	case StatusExpired:
		return apperr.ErrExpired
	}
	r.Status = StatusAccepted
	acceptedAt := now
	r.AcceptedAt = &acceptedAt
	return nil
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed error with a stable code callers can branch on.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code so wrapped or cloned errors still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func Wrap(err error, base *Error, message string) *Error {
	out := *base
	out.Err = err
	if message != "" {
		out.Message = message
	}
	return &out
}

var (
	ErrUnavailable     = New("UNAVAILABLE", http.StatusUnprocessableEntity, "provider is not available on that day")
	ErrOutOfHours      = New("OUT_OF_HOURS", http.StatusUnprocessableEntity, "requested time is outside working hours")
	ErrDuringBreak     = New("DURING_BREAK", http.StatusUnprocessableEntity, "requested time falls within the provider's break")
	ErrNoAvailability  = New("NO_AVAILABILITY", http.StatusUnprocessableEntity, "provider has no working hours")
	ErrExpired         = New("EXPIRED", http.StatusConflict, "appointment request expired")
	ErrAlreadyAccepted = New("ALREADY_ACCEPTED", http.StatusConflict, "appointment request already accepted")
	ErrNotFound        = New("NOT_FOUND", http.StatusNotFound, "appointment request not found")
	ErrValidation      = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized    = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInternal        = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error; unknown errors become ErrInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, "")
}

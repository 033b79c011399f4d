package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptrequests/libs/auth"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/requests"
)

type RequestHandler struct {
	svc    *requests.Service
	logger *slog.Logger
}

func NewRequestHandler(svc *requests.Service, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{svc: svc, logger: logger}
}

type createRequestBody struct {
	PatientID     string `json:"patient_id"`
	ProviderID    string `json:"provider_id"`
	PreferredTime string `json:"preferred_time"`
	RequestedAt   string `json:"requested_at"`
	Timezone      string `json:"timezone"`
}

type acceptRequestBody struct {
	RequestID string `json:"request_id"`
}

type requestItem struct {
	RequestID     string `json:"request_id"`
	PatientID     string `json:"patient_id"`
	ProviderID    string `json:"provider_id"`
	PreferredTime string `json:"preferred_time"`
	RequestedAt   string `json:"requested_at"`
	ExpiresAt     string `json:"expires_at"`
	Status        string `json:"status"`
	AcceptedAt    string `json:"accepted_at,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type expirationItem struct {
	ProviderID     string `json:"provider_id"`
	Reference      string `json:"reference"`
	Classification string `json:"classification"`
	Available      bool   `json:"available"`
	NextStart      string `json:"next_start,omitempty"`
	DaysAhead      int    `json:"days_ahead,omitempty"`
	ExpiresAt      string `json:"expires_at"`
}

// Create is public: patients submit requests without a provider token.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.logger, validationError("invalid json body"))
		return
	}

	loc, err := parseLocation(body.Timezone)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	preferred, err := parseInstant("preferred_time", body.PreferredTime, loc)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if preferred.IsZero() {
		writeError(w, r, h.logger, validationError("preferred_time is required"))
		return
	}
	requestedAt, err := parseInstant("requested_at", body.RequestedAt, loc)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	req, err := h.svc.Create(r.Context(), requests.CreateInput{
		PatientID:     body.PatientID,
		ProviderID:    body.ProviderID,
		PreferredTime: preferred,
		RequestedAt:   requestedAt,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestItem(req))
}

func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var body acceptRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.logger, validationError("invalid json body"))
		return
	}

	provider := providerID(r)
	if provider == "" {
		writeError(w, r, h.logger, apperr.ErrUnauthorized)
		return
	}
	req, err := h.svc.Accept(r.Context(), provider, strings.TrimSpace(body.RequestID))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestItem(req))
}

// List returns the authenticated provider's open requests.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	provider := providerID(r)
	if provider == "" {
		writeError(w, r, h.logger, apperr.ErrUnauthorized)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	reqs, err := h.svc.ListOpen(r.Context(), provider, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]requestItem, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, toRequestItem(req))
	}
	writeJSON(w, http.StatusOK, items)
}

// Expiration previews the expiry a request made at ?at= would receive.
// Without ?at= the current instant is used in ?timezone=, or UTC when that is absent too.
func (h *RequestHandler) Expiration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	q := r.URL.Query()
	loc, err := parseLocation(q.Get("timezone"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	at, err := parseInstant("at", q.Get("at"), loc)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Preview(r.Context(), strings.TrimSpace(q.Get("provider_id")), at, loc)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpirationItem(res))
}

func providerID(r *http.Request) string {
	if id := auth.ProviderIDFromContext(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(auth.ProviderIDHeader))
}

func parseLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, validationError("unknown timezone " + strconv.Quote(name))
	}
	return loc, nil
}

// parseInstant reads an RFC 3339 value. With loc set the instant is re-expressed in loc,
// which decides the weekday and wall clock used for availability checks.
func parseInstant(field, raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, validationError("invalid " + field + ", expected RFC 3339")
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toRequestItem(req model.AppointmentRequest) requestItem {
	item := requestItem{
		RequestID:     req.ID,
		PatientID:     req.PatientID,
		ProviderID:    req.ProviderID,
		PreferredTime: formatTime(req.PreferredTime),
		RequestedAt:   formatTime(req.RequestedAt),
		ExpiresAt:     formatTime(req.ExpiresAt),
		Status:        string(req.Status),
		CreatedAt:     formatTime(req.CreatedAt),
	}
	if req.AcceptedAt != nil {
		item.AcceptedAt = formatTime(*req.AcceptedAt)
	}
	return item
}

func toExpirationItem(res availability.Resolution) expirationItem {
	return expirationItem{
		ProviderID:     res.ProviderID,
		Reference:      formatTime(res.Reference),
		Classification: res.Classification.String(),
		Available:      res.Available,
		NextStart:      formatTime(res.NextStart),
		DaysAhead:      res.DaysAhead,
		ExpiresAt:      formatTime(res.ExpiresAt),
	}
}

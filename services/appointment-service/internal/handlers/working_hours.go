package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/availability"
)

// WorkingHoursStore is the write side of a provider's weekly schedule.
type WorkingHoursStore interface {
	List(ctx context.Context, providerID string) ([]availability.WorkingHours, error)
	Upsert(ctx context.Context, wh availability.WorkingHours) error
	Delete(ctx context.Context, providerID string, day availability.Weekday) (bool, error)
}

// Invalidator drops cached working hours after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, providerID string) error
}

type WorkingHoursHandler struct {
	store  WorkingHoursStore
	cache  Invalidator
	logger *slog.Logger
}

// NewWorkingHoursHandler accepts a nil cache when no Redis is configured.
func NewWorkingHoursHandler(store WorkingHoursStore, cache Invalidator, logger *slog.Logger) *WorkingHoursHandler {
	return &WorkingHoursHandler{store: store, cache: cache, logger: logger}
}

type workingHoursItem struct {
	Weekday    string `json:"weekday"`
	Start      string `json:"start"`
	End        string `json:"end"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

func (h *WorkingHoursHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if providerID(r) == "" {
		writeError(w, r, h.logger, apperr.ErrUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPut:
		h.upsert(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h *WorkingHoursHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context(), providerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]workingHoursItem, 0, len(records))
	for _, wh := range records {
		items = append(items, toWorkingHoursItem(wh))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *WorkingHoursHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var body workingHoursItem
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.logger, validationError("invalid json body"))
		return
	}
	wh, err := fromWorkingHoursItem(providerID(r), body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.store.Upsert(r.Context(), wh); err != nil {
		if errors.Is(err, availability.ErrInvalidWorkingHours) {
			err = apperr.Wrap(err, apperr.ErrValidation, err.Error())
		}
		writeError(w, r, h.logger, err)
		return
	}
	h.invalidate(r, wh.ProviderID)
	writeJSON(w, http.StatusOK, toWorkingHoursItem(wh))
}

func (h *WorkingHoursHandler) delete(w http.ResponseWriter, r *http.Request) {
	day, err := availability.ParseWeekday(r.URL.Query().Get("weekday"))
	if err != nil {
		writeError(w, r, h.logger, validationError(err.Error()))
		return
	}
	provider := providerID(r)
	existed, err := h.store.Delete(r.Context(), provider, day)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !existed {
		writeError(w, r, h.logger, apperr.Wrap(nil, apperr.ErrNotFound, "no working hours on "+day.String()))
		return
	}
	h.invalidate(r, provider)
	w.WriteHeader(http.StatusNoContent)
}

// invalidate is best effort: a stale entry ages out with the cache TTL.
func (h *WorkingHoursHandler) invalidate(r *http.Request, providerID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(r.Context(), providerID); err != nil {
		h.logger.WarnContext(r.Context(), "working hours cache invalidation failed", "provider_id", providerID, "err", err)
	}
}

func fromWorkingHoursItem(providerID string, item workingHoursItem) (availability.WorkingHours, error) {
	day, err := availability.ParseWeekday(item.Weekday)
	if err != nil {
		return availability.WorkingHours{}, validationError(err.Error())
	}
	start, err := availability.ParseClock(item.Start)
	if err != nil {
		return availability.WorkingHours{}, validationError("invalid start: " + err.Error())
	}
	end, err := availability.ParseClock(item.End)
	if err != nil {
		return availability.WorkingHours{}, validationError("invalid end: " + err.Error())
	}
	wh := availability.WorkingHours{ProviderID: providerID, Weekday: day, Start: start, End: end}

	bs, be := strings.TrimSpace(item.BreakStart), strings.TrimSpace(item.BreakEnd)
	switch {
	case bs == "" && be == "":
	case bs == "" || be == "":
		return availability.WorkingHours{}, validationError("break_start and break_end must be set together")
	default:
		breakStart, err := availability.ParseClock(bs)
		if err != nil {
			return availability.WorkingHours{}, validationError("invalid break_start: " + err.Error())
		}
		breakEnd, err := availability.ParseClock(be)
		if err != nil {
			return availability.WorkingHours{}, validationError("invalid break_end: " + err.Error())
		}
		wh.Break = &availability.Interval{Start: breakStart, End: breakEnd}
	}

	if err := wh.Validate(); err != nil {
		return availability.WorkingHours{}, validationError(err.Error())
	}
	return wh, nil
}

func toWorkingHoursItem(wh availability.WorkingHours) workingHoursItem {
	item := workingHoursItem{
		Weekday: wh.Weekday.String(),
		Start:   wh.Start.String(),
		End:     wh.End.String(),
	}
	if wh.Break != nil {
		item.BreakStart = wh.Break.Start.String()
		item.BreakEnd = wh.Break.End.String()
	}
	return item
}

package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/apptrequests/libs/httpx"
)

// Routes holds the per-route middleware. Either may be nil.
type Routes struct {
	// Public wraps unauthenticated patient endpoints, normally a rate limiter.
	Public httpx.Middleware
	// Provider authenticates provider endpoints.
	Provider httpx.Middleware
}

func Register(mux *http.ServeMux, reqs *RequestHandler, hours *WorkingHoursHandler, rt Routes) {
	mux.Handle("/api/v1/appointment-requests", byMethod{
		http.MethodPost: httpx.Handle(reqs.Create, rt.Public),
		http.MethodGet:  httpx.Handle(reqs.List, rt.Provider),
	})
	mux.Handle("/api/v1/appointment-requests/accept", httpx.Handle(reqs.Accept, rt.Provider))
	mux.Handle("/api/v1/availability/expiration", httpx.Handle(reqs.Expiration, rt.Public))
	mux.Handle("/api/v1/providers/working-hours", httpx.Chain(hours, rt.Provider))
}

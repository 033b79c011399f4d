package metrics

import (
	"context"
	"strconv"

	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/availability"
	"github.com/prometheus/client_golang/prometheus"
)

// Resolver counts expiration decisions. It is an availability.Sink.
type Resolver struct {
	resolutions *prometheus.CounterVec
	daysAhead   prometheus.Histogram
}

func NewResolver(reg prometheus.Registerer) *Resolver {
	m := &Resolver{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptrequests",
			Subsystem: "availability",
			Name:      "resolutions_total",
			Help:      "Expiration decisions by classification of the reference instant",
		}, []string{"classification", "available"}),
		daysAhead: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "apptrequests",
			Subsystem: "availability",
			Name:      "next_start_days_ahead",
			Help:      "Days between the reference date and the next working period",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutions, m.daysAhead)
	return m
}

var _ availability.Sink = (*Resolver)(nil)

func (m *Resolver) Resolved(_ context.Context, res availability.Resolution) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(res.Classification.String(), strconv.FormatBool(res.Available)).Inc()
	if !res.NextStart.IsZero() {
		m.daysAhead.Observe(float64(res.DaysAhead))
	}
}

// Requests counts appointment request operations by outcome, where outcome is "ok"
// or an error code.
type Requests struct {
	operations *prometheus.CounterVec
}

func NewRequests(reg prometheus.Registerer) *Requests {
	m := &Requests{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptrequests",
			Subsystem: "requests",
			Name:      "operations_total",
			Help:      "Appointment request operations by outcome",
		}, []string{"operation", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operations)
	return m
}

func (m *Requests) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

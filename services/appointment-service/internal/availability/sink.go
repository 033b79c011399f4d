package availability

import (
	"context"
	"log/slog"
	"time"
)

// Sink receives every resolution made by a Resolver.
type Sink interface {
	Resolved(ctx context.Context, res Resolution)
}

type NopSink struct{}

func (NopSink) Resolved(context.Context, Resolution) {}

// LogSink writes resolutions at debug level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Resolved(ctx context.Context, res Resolution) {
	if s.Logger == nil {
		return
	}
	attrs := []any{
		"provider_id", res.ProviderID,
		"reference", res.Reference.Format(time.RFC3339),
		"classification", res.Classification.String(),
		"available", res.Available,
	}
	if !res.NextStart.IsZero() {
		attrs = append(attrs, "next_start", res.NextStart.Format(time.RFC3339), "days_ahead", res.DaysAhead)
	}
	if !res.ExpiresAt.IsZero() {
		attrs = append(attrs, "expires_at", res.ExpiresAt.Format(time.RFC3339))
	}
	s.Logger.DebugContext(ctx, "availability resolved", attrs...)
}

type multiSink []Sink

func (m multiSink) Resolved(ctx context.Context, res Resolution) {
	for _, s := range m {
		s.Resolved(ctx, res)
	}
}

// Sinks fans a resolution out to every non-nil sink.
func Sinks(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 5 * time.Minute

// WorkingHours is a read-through Redis cache in front of another Lookup. Missing
// records are cached too, so a provider with a sparse week does not hit Postgres
// on every scan.
type WorkingHours struct {
	rdb    *redis.Client
	next   availability.Lookup
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

var _ availability.Lookup = (*WorkingHours)(nil)

func NewWorkingHours(rdb *redis.Client, next availability.Lookup, ttl time.Duration, logger *slog.Logger) *WorkingHours {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkingHours{rdb: rdb, next: next, ttl: ttl, prefix: "wh", logger: logger}
}

type entry struct {
	Found      bool           `json:"found"`
	Start      time.Duration  `json:"start,omitempty"`
	End        time.Duration  `json:"end,omitempty"`
	BreakStart *time.Duration `json:"break_start,omitempty"`
	BreakEnd   *time.Duration `json:"break_end,omitempty"`
}

// WorkingHours implements availability.Lookup. Redis failures fall through to the
// wrapped lookup.
func (c *WorkingHours) WorkingHours(ctx context.Context, providerID string, day availability.Weekday) (availability.WorkingHours, bool, error) {
	key := c.key(providerID, day)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e entry
		if jsonErr := json.Unmarshal(raw, &e); jsonErr == nil {
			return e.record(providerID, day), e.Found, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt working hours cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "working hours cache read failed", "key", key, "err", err)
	}

	wh, ok, err := c.next.WorkingHours(ctx, providerID, day)
	if err != nil {
		return availability.WorkingHours{}, false, err
	}
	c.store(ctx, key, newEntry(wh, ok))
	return wh, ok, nil
}

// Invalidate drops every cached weekday for providerID.
func (c *WorkingHours) Invalidate(ctx context.Context, providerID string) error {
	keys := make([]string, 0, availability.DaysPerWeek)
	for d := availability.Monday; d <= availability.Sunday; d++ {
		keys = append(keys, c.key(providerID, d))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate working hours for %s: %w", providerID, err)
	}
	return nil
}

func (c *WorkingHours) store(ctx context.Context, key string, e entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "working hours cache write failed", "key", key, "err", err)
	}
}

func (c *WorkingHours) key(providerID string, day availability.Weekday) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, providerID, day)
}

func newEntry(wh availability.WorkingHours, ok bool) entry {
	if !ok {
		return entry{}
	}
	e := entry{Found: true, Start: time.Duration(wh.Start), End: time.Duration(wh.End)}
	if wh.Break != nil {
		bs, be := time.Duration(wh.Break.Start), time.Duration(wh.Break.End)
		e.BreakStart, e.BreakEnd = &bs, &be
	}
	return e
}

func (e entry) record(providerID string, day availability.Weekday) availability.WorkingHours {
	if !e.Found {
		return availability.WorkingHours{}
	}
	wh := availability.WorkingHours{
		ProviderID: providerID,
		Weekday:    day,
		Start:      availability.Clock(e.Start),
		End:        availability.Clock(e.End),
	}
	if e.BreakStart != nil && e.BreakEnd != nil {
		wh.Break = &availability.Interval{
			Start: availability.Clock(*e.BreakStart),
			End:   availability.Clock(*e.BreakEnd),
		}
	}
	return wh
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptrequests/libs/db"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/availability"
)

// WorkingHoursRepository stores one row per (provider, weekday). Times are minutes
// after midnight in the provider's wall clock.
type WorkingHoursRepository struct {
	conn db.Conn
}

func NewWorkingHoursRepository(conn db.Conn) *WorkingHoursRepository {
	return &WorkingHoursRepository{conn: conn}
}

var _ availability.Lookup = (*WorkingHoursRepository)(nil)

// WorkingHours implements availability.Lookup.
func (r *WorkingHoursRepository) WorkingHours(ctx context.Context, providerID string, day availability.Weekday) (availability.WorkingHours, bool, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT provider_id, weekday, start_minute, end_minute, break_start_minute, break_end_minute
		FROM working_hours
		WHERE provider_id = $1 AND weekday = $2
	`, providerID, int16(day))
	wh, err := scanWorkingHours(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return availability.WorkingHours{}, false, nil
	}
	if err != nil {
		return availability.WorkingHours{}, false, err
	}
	return wh, true, nil
}

func (r *WorkingHoursRepository) List(ctx context.Context, providerID string) ([]availability.WorkingHours, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT provider_id, weekday, start_minute, end_minute, break_start_minute, break_end_minute
		FROM working_hours
		WHERE provider_id = $1
		ORDER BY weekday
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.WorkingHours
	for rows.Next() {
		wh, err := scanWorkingHours(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Upsert validates wh and replaces the provider's record for that weekday.
func (r *WorkingHoursRepository) Upsert(ctx context.Context, wh availability.WorkingHours) error {
	if err := wh.Validate(); err != nil {
		return err
	}
	var breakStart, breakEnd *int
	if wh.Break != nil {
		bs, be := wh.Break.Start.Minutes(), wh.Break.End.Minutes()
		breakStart, breakEnd = &bs, &be
	}
	_, err := r.conn.Exec(ctx, `
		INSERT INTO working_hours (provider_id, weekday, start_minute, end_minute, break_start_minute, break_end_minute)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_id, weekday) DO UPDATE
		SET start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			break_start_minute = EXCLUDED.break_start_minute,
			break_end_minute = EXCLUDED.break_end_minute,
			updated_at = now()
	`, wh.ProviderID, int16(wh.Weekday), wh.Start.Minutes(), wh.End.Minutes(), breakStart, breakEnd)
	return err
}

// Delete removes a weekday record. It reports whether a row existed.
func (r *WorkingHoursRepository) Delete(ctx context.Context, providerID string, day availability.Weekday) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		DELETE FROM working_hours
		WHERE provider_id = $1 AND weekday = $2
	`, providerID, int16(day))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanWorkingHours(row pgx.Row) (availability.WorkingHours, error) {
	var (
		wh                   availability.WorkingHours
		weekday              int16
		start, end           int
		breakStart, breakEnd *int
	)
	if err := row.Scan(&wh.ProviderID, &weekday, &start, &end, &breakStart, &breakEnd); err != nil {
		return availability.WorkingHours{}, err
	}
	wh.Weekday = availability.Weekday(weekday)
	if !wh.Weekday.Valid() {
		return availability.WorkingHours{}, fmt.Errorf("working_hours row for %s has weekday %d", wh.ProviderID, weekday)
	}
	wh.Start = availability.ClockFromMinutes(start)
	wh.End = availability.ClockFromMinutes(end)
	if breakStart != nil && breakEnd != nil {
		wh.Break = &availability.Interval{
			Start: availability.ClockFromMinutes(*breakStart),
			End:   availability.ClockFromMinutes(*breakEnd),
		}
	}
	return wh, nil
}

package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptrequests/libs/kafkax"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func outboxRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}).
		AddRow(int64(7), "evt-1", "appointment_request", "req-1", EventRequestCreated, []byte(`{"request_id":"req-1"}`), "", "", time.Now())
}

func TestPublishBatch_WritesAndMarksPublished(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(10).WillReturnRows(outboxRows())
	mock.ExpectExec("UPDATE outbox_events").WithArgs([]int64{7}).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	p := NewPublisher(mock, NewRepository(), discardLogger(), PublisherConfig{BatchSize: 10})
	w := &captureWriter{}
	n, err := p.PublishBatch(context.Background(), w)
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if n != 1 || len(w.msgs) != 1 {
		t.Fatalf("expected one message, got n=%d msgs=%d", n, len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != EventRequestCreated || string(msg.Key) != "req-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID) != "evt-1" {
		t.Fatalf("missing event_id header: %+v", msg.Headers)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishBatch_WriterFailureLeavesEventsUnpublished(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(50).WillReturnRows(outboxRows())
	mock.ExpectRollback()

	p := NewPublisher(mock, NewRepository(), discardLogger(), PublisherConfig{})
	writeErr := errors.New("broker down")
	if _, err := p.PublishBatch(context.Background(), &captureWriter{err: writeErr}); !errors.Is(err, writeErr) {
		t.Fatalf("expected writer error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsert_WritesEnvelope(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "appointment_request", "req-1", EventRequestAccepted, []byte(`{}`), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewRepository().Insert(context.Background(), mock, Event{
		AggregateType: "appointment_request",
		AggregateID:   "req-1",
		EventType:     EventRequestAccepted,
		Payload:       []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPurge_DeletesEventsOlderThanRetention(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	now := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM outbox_events").
		WithArgs(now.Add(-72 * time.Hour)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	p := NewPublisher(mock, NewRepository(), discardLogger(), PublisherConfig{Retention: 72 * time.Hour})
	p.now = func() time.Time { return now }
	n, err := p.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPurge_DisabledWithoutRetention(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	n, err := NewPublisher(mock, NewRepository(), discardLogger(), PublisherConfig{}).Purge(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

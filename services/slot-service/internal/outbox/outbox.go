// Package outbox implements transactional event publication. Mutation
// handlers insert an event in the same transaction as the data change; the
// publisher drains the table to Kafka so other replicas can invalidate their
// slot caches.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicware/slotengine/libs/db"
	otelx "github.com/clinicware/slotengine/libs/otel"
)

// Topics double as event types. Each carries the aggregate id; consumers only
// need to know that something under the aggregate changed.
const (
	BookingChanged     = "slots.booking.changed.v1"
	RuleChanged        = "slots.rule.changed.v1"
	ServiceTypeChanged = "slots.service-type.changed.v1"
)

// Event is the envelope written to the outbox table. The Kafka topic name
// equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type changePayload struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// ChangeEvent builds the invalidation event for one aggregate mutation.
// Action is "created", "updated", "deleted" or a status value.
func ChangeEvent(eventType, aggregateType, id, action string) Event {
	payload, _ := json.Marshal(changePayload{ID: id, Action: action})
	return Event{
		AggregateType: aggregateType,
		AggregateID:   id,
		EventType:     eventType,
		Payload:       payload,
	}
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.ID, &rcd.EventID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType, &rcd.Payload, &rcd.Traceparent, &rcd.Tracestate, &rcd.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rcd)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kopi/internal/db"
)

// Event is a persisted domain event.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID uuid.UUID       `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// EventStore defines the persistence operations required by the event bus.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
	PendingDomainEvents(ctx context.Context, before time.Time, limit int) ([]Event, error)
}

// Notifier reacts to emitted events (task enqueueing, metrics, etc.).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus persists domain events and fans them out to downstream handlers.
// Events stay pending until every notifier accepted them; Redeliver retries
// the pending ones.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
}

// Emit records the event and dispatches it to all configured notifiers.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (Event, error) {
	if b == nil || b.Store == nil {
		return Event{}, errors.New("events: store not configured")
	}
	topic, encoded, err := prepare(topic, aggregateID, payload)
	if err != nil {
		return Event{}, err
	}
	ev, err := b.Store.InsertDomainEvent(ctx, topic, aggregateID, encoded)
	if err != nil {
		return Event{}, fmt.Errorf("events: persist event: %w", err)
	}
	return ev, b.Dispatch(ctx, ev)
}

// Dispatch hands an already persisted event to the notifiers and marks it
// dispatched when all of them succeed.
func (b *Bus) Dispatch(ctx context.Context, ev Event) error {
	if b == nil || b.Store == nil {
		return errors.New("events: store not configured")
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	if joined != nil {
		return joined
	}
	if err := b.Store.MarkDispatched(ctx, ev.ID); err != nil {
		return fmt.Errorf("events: mark dispatched: %w", err)
	}
	return nil
}

// Redeliver dispatches up to limit pending events that occurred before the
// grace period and returns how many went through.
func (b *Bus) Redeliver(ctx context.Context, grace time.Duration, limit int) (int, error) {
	if b == nil || b.Store == nil {
		return 0, errors.New("events: store not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	pending, err := b.Store.PendingDomainEvents(ctx, time.Now().Add(-grace), limit)
	if err != nil {
		return 0, fmt.Errorf("events: list pending: %w", err)
	}
	var (
		sent   int
		joined error
	)
	for _, ev := range pending {
		if err := b.Dispatch(ctx, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("event %s: %w", ev.ID, err))
			continue
		}
		sent++
	}
	return sent, joined
}

// Record persists an event through conn without dispatching it. Callers pass
// their transaction so the event commits or rolls back with their change.
func Record(ctx context.Context, conn db.DBTX, topic string, aggregateID uuid.UUID, payload any) (Event, error) {
	topic, encoded, err := prepare(topic, aggregateID, payload)
	if err != nil {
		return Event{}, err
	}
	ev, err := (&Store{DB: conn}).InsertDomainEvent(ctx, topic, aggregateID, encoded)
	if err != nil {
		return Event{}, fmt.Errorf("events: persist event: %w", err)
	}
	return ev, nil
}

func prepare(topic string, aggregateID uuid.UUID, payload any) (string, []byte, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", nil, errors.New("events: topic is required")
	}
	if aggregateID == uuid.Nil {
		return "", nil, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return "", nil, fmt.Errorf("events: encode payload: %w", err)
	}
	return topic, encoded, nil
}

// Store persists events in the domain_events table.
type Store struct {
	DB db.DBTX
}

const eventColumns = `id, topic, aggregate_id, payload, occurred_at`

// InsertDomainEvent stores an event and returns the persisted row.
func (s *Store) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	var ev Event
	err := s.DB.QueryRow(ctx, `
INSERT INTO domain_events (id, topic, aggregate_id, payload)
VALUES ($1, $2, $3, $4)
RETURNING `+eventColumns,
		uuid.New(), topic, aggregateID, payload).Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// MarkDispatched stamps dispatched_at on an event.
func (s *Store) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `UPDATE domain_events SET dispatched_at = now() WHERE id = $1 AND dispatched_at IS NULL`, id)
	return err
}

// PendingDomainEvents lists undispatched events older than before, oldest first.
func (s *Store) PendingDomainEvents(ctx context.Context, before time.Time, limit int) ([]Event, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+eventColumns+` FROM domain_events
WHERE dispatched_at IS NULL AND occurred_at < $1
ORDER BY occurred_at LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		data := []byte(v)
		if !json.Valid(data) {
			return nil, errors.New("payload is not valid json")
		}
		return data, nil
	default:
		return json.Marshal(v)
	}
}

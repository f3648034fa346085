package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kopi/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
	events      []events.Event
	dispatched  map[uuid.UUID]bool
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	s.lastTopic = topic
	s.lastPayload = payload
	ev := events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *stubStore) MarkDispatched(_ context.Context, id uuid.UUID) error {
	if s.dispatched == nil {
		s.dispatched = map[uuid.UUID]bool{}
	}
	s.dispatched[id] = true
	return nil
}

func (s *stubStore) PendingDomainEvents(_ context.Context, before time.Time, limit int) ([]events.Event, error) {
	var out []events.Event
	for _, ev := range s.events {
		if !s.dispatched[ev.ID] && ev.OccurredAt.Before(before) && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

type captureEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	return &asynq.TaskInfo{ID: "1", Type: task.Type()}, nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	aggregate := uuid.New()
	event, err := bus.Emit(context.Background(), events.TopicOrderCreated, aggregate, map[string]any{"orderId": "123"})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, store.lastTopic)
	require.JSONEq(t, `{"orderId":"123"}`, string(store.lastPayload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	_, err = bus.Emit(context.Background(), " ", aggregate, nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, uuid.Nil, nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, aggregate, "{not json")
	require.Error(t, err)
}

func TestTaskNotifierEnqueuesAccrual(t *testing.T) {
	enq := &captureEnqueuer{}
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{&events.TaskNotifier{Client: enq, Queue: "default"}}}
	orderID := uuid.New()

	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, orderID, events.OrderPayload{OrderID: orderID.String(), CustomerPhone: "0901234567", FinalTotal: 50000})
	require.NoError(t, err)
	require.Empty(t, enq.tasks)

	_, err = bus.Emit(context.Background(), events.TopicOrderCompleted, orderID, events.OrderPayload{OrderID: orderID.String(), FinalTotal: 50000})
	require.NoError(t, err)
	require.Empty(t, enq.tasks, "orders without a phone are not accrued")

	_, err = bus.Emit(context.Background(), events.TopicOrderCompleted, orderID, events.OrderPayload{OrderID: orderID.String(), CustomerPhone: "0901234567", FinalTotal: 50000})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, events.TypeMembershipAccrue, enq.tasks[0].Type())

	p, err := events.ParseAccruePayload(enq.tasks[0])
	require.NoError(t, err)
	require.Equal(t, events.AccruePayload{OrderID: orderID.String(), Phone: "0901234567", Amount: 50000}, p)

	var body map[string]any
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &body))
	require.Equal(t, "0901234567", body["phone"])
}

func TestTaskNotifierIgnoresDuplicates(t *testing.T) {
	n := &events.TaskNotifier{Client: &captureEnqueuer{err: asynq.ErrTaskIDConflict}}
	payload, err := json.Marshal(events.OrderPayload{OrderID: "o1", CustomerPhone: "0901234567", FinalTotal: 1000})
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), events.Event{Topic: events.TopicOrderCompleted, Payload: payload}))

	n.Client = &captureEnqueuer{err: errors.New("redis down")}
	require.Error(t, n.Notify(context.Background(), events.Event{Topic: events.TopicOrderCompleted, Payload: payload}))
}

func TestParseAccruePayloadSkipsRetryOnGarbage(t *testing.T) {
	_, err := events.ParseAccruePayload(asynq.NewTask(events.TypeMembershipAccrue, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestFailedDispatchStaysPendingUntilRedelivered(t *testing.T) {
	store := &stubStore{}
	enq := &captureEnqueuer{err: errors.New("redis down")}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{&events.TaskNotifier{Client: enq}}}
	orderID := uuid.New()

	ev, err := bus.Emit(context.Background(), events.TopicOrderCompleted, orderID, events.OrderPayload{OrderID: orderID.String(), CustomerPhone: "0901234567", FinalTotal: 85000})
	require.Error(t, err)
	require.False(t, store.dispatched[ev.ID])

	sent, err := bus.Redeliver(context.Background(), -time.Second, 10)
	require.Error(t, err)
	require.Zero(t, sent)

	enq.err = nil
	sent, err = bus.Redeliver(context.Background(), -time.Second, 10)
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.True(t, store.dispatched[ev.ID])
	require.Len(t, enq.tasks, 1)

	sent, err = bus.Redeliver(context.Background(), -time.Second, 10)
	require.NoError(t, err)
	require.Zero(t, sent)
}

func TestRedeliverRespectsGrace(t *testing.T) {
	store := &stubStore{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{&failingNotifier{}}}
	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, uuid.New(), nil)
	require.Error(t, err)

	bus.Notifiers = nil
	sent, err := bus.Redeliver(context.Background(), time.Hour, 10)
	require.NoError(t, err)
	require.Zero(t, sent)
}

func TestDispatchMarksRecordedEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}
	ev := events.Event{ID: uuid.New(), Topic: events.TopicOrderCompleted, AggregateID: uuid.New(), Payload: []byte(`{}`)}

	require.NoError(t, bus.Dispatch(context.Background(), ev))
	require.True(t, store.dispatched[ev.ID])
	require.Len(t, notifier.events, 1)
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, events.Event) error { return errors.New("down") }

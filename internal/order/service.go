package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/events"
)

// Querier captures the persistence methods required by the order service.
type Querier interface {
	CreateOrder(ctx context.Context, o Order) (Order, error)
	GetOrder(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, int64, error)
	// UpdateStatus commits the status change together with its order.* event.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (Order, events.Event, error)
}

// Emitter publishes domain events. *events.Bus satisfies it.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Dispatcher delivers events that are already persisted. *events.Bus satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.Event) error
}

// Service tracks orders through their lifecycle.
type Service struct {
	Q      Querier
	Events Dispatcher
	Logger zerolog.Logger
}

// ErrNotCancelable is returned when a customer tries to cancel an order that is already being prepared.
var ErrNotCancelable = errors.New("only pending orders can be canceled")

// Get returns an order. A non-nil userID restricts the lookup to that customer.
func (s *Service) Get(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (Order, error) {
	return s.Q.GetOrder(ctx, id, userID)
}

// List returns a page of orders matching f.
func (s *Service) List(ctx context.Context, f ListFilter, page, perPage int) ([]Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	f.Limit = perPage
	f.Offset = (page - 1) * perPage
	return s.Q.ListOrders(ctx, f)
}

// Cancel lets a customer cancel their own order while it is still pending.
func (s *Service) Cancel(ctx context.Context, id, userID uuid.UUID) (Order, error) {
	current, err := s.Q.GetOrder(ctx, id, &userID)
	if err != nil {
		return Order{}, err
	}
	if current.Status != StatusPending {
		return Order{}, ErrNotCancelable
	}
	return s.transition(ctx, current, StatusCanceled)
}

// UpdateStatus moves an order to target, enforcing the lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target Status) (Order, error) {
	current, err := s.Q.GetOrder(ctx, id, nil)
	if err != nil {
		return Order{}, err
	}
	return s.transition(ctx, current, target)
}

func (s *Service) transition(ctx context.Context, current Order, target Status) (Order, error) {
	if !current.Status.CanTransition(target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, target)
	}
	updated, ev, err := s.Q.UpdateStatus(ctx, current.ID, current.Status, target)
	if err != nil {
		return Order{}, err
	}
	s.dispatch(ctx, ev)
	return updated, nil
}

func topicFor(status Status) string {
	switch status {
	case StatusCompleted:
		return events.TopicOrderCompleted
	case StatusCanceled:
		return events.TopicOrderCanceled
	default:
		return events.TopicOrderStatusChanged
	}
}

// Payload builds the event body for an order.
func Payload(o Order) events.OrderPayload {
	return events.OrderPayload{
		OrderID:       o.ID.String(),
		Channel:       o.Channel,
		Status:        string(o.Status),
		CustomerPhone: o.CustomerPhone,
		FinalTotal:    o.FinalTotal,
	}
}

// dispatch leaves a failed event pending in domain_events for events.Relay.
func (s *Service) dispatch(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Dispatch(ctx, ev); err != nil {
		s.Logger.Warn().Err(err).Str("event_id", ev.ID.String()).Str("topic", ev.Topic).Msg("order event pending redelivery")
	}
}

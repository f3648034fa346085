package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeMembershipAccrue is the asynq task type that credits a completed order
// to the customer's loyalty spend.
const TypeMembershipAccrue = "membership:accrue"

// AccruePayload is the body of a membership:accrue task.
type AccruePayload struct {
	OrderID string `json:"orderId"`
	Phone   string `json:"phone"`
	Amount  int64  `json:"amount"`
}

// NewAccrueTask builds a membership:accrue task.
func NewAccrueTask(p AccruePayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMembershipAccrue, data, asynq.MaxRetry(10), asynq.Timeout(30*time.Second)), nil
}

// ParseAccruePayload decodes a membership:accrue task body. Malformed bodies
// are marked with asynq.SkipRetry.
func ParseAccruePayload(t *asynq.Task) (AccruePayload, error) {
	var p AccruePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return AccruePayload{}, fmt.Errorf("decode accrue payload: %v: %w", err, asynq.SkipRetry)
	}
	return p, nil
}

// Enqueuer is the subset of *asynq.Client used by TaskNotifier.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskNotifier turns completed orders into background accrual tasks.
type TaskNotifier struct {
	Client    Enqueuer
	Queue     string
	Retention time.Duration
}

// Notify enqueues a membership:accrue task for order.completed events that
// carry a customer phone. The task id is derived from the order so a repeated
// completion does not accrue twice.
func (n *TaskNotifier) Notify(ctx context.Context, ev Event) error {
	if n == nil || n.Client == nil || ev.Topic != TopicOrderCompleted {
		return nil
	}
	var body OrderPayload
	if err := json.Unmarshal(ev.Payload, &body); err != nil {
		return fmt.Errorf("decode order payload: %w", err)
	}
	if body.CustomerPhone == "" || body.FinalTotal <= 0 {
		return nil
	}
	task, err := NewAccrueTask(AccruePayload{OrderID: body.OrderID, Phone: body.CustomerPhone, Amount: body.FinalTotal})
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID("accrue:" + body.OrderID)}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	if n.Retention > 0 {
		opts = append(opts, asynq.Retention(n.Retention))
	}
	if _, err := n.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue accrue task: %w", err)
	}
	return nil
}

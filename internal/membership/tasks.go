package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-kopi/internal/events"
)

// HandleAccrueTask processes a membership:accrue task.
func (s *Service) HandleAccrueTask(ctx context.Context, t *asynq.Task) error {
	p, err := events.ParseAccruePayload(t)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(p.OrderID)
	if err != nil {
		return fmt.Errorf("accrue task order id %q: %v: %w", p.OrderID, err, asynq.SkipRetry)
	}
	c, err := s.Accrue(ctx, orderID, p.Phone, p.Amount)
	if err != nil {
		return err
	}
	s.Logger.Info().Str("order_id", p.OrderID).Str("phone", c.Phone).Int64("total_spent", c.TotalSpent).Msg("membership accrued")
	return nil
}

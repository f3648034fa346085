package events

// Topic constants for domain events emitted by the shop.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderCompleted     = "order.completed"
	TopicOrderCanceled      = "order.canceled"
)

// DefaultTopics returns the canonical list of order topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderStatusChanged,
		TopicOrderCompleted,
		TopicOrderCanceled,
	}
}

// OrderPayload is the body of every order.* event.
type OrderPayload struct {
	OrderID       string `json:"orderId"`
	Channel       string `json:"channel"`
	Status        string `json:"status"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	FinalTotal    int64  `json:"finalTotal"`
}

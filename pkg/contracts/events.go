package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published to Kafka for order lifecycle changes.
type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventOrderCompleted = "order.completed"

	DefaultTopic = "bonsai.orders"
)

func NewEvent(eventType, orderID string, payload map[string]any) Event {
	return Event{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
		Type:      eventType,
		Payload:   payload,
	}
}

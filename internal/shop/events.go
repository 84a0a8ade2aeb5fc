package shop

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderPaid          = "OrderPaid"
	EventOrderPaymentFailed = "OrderPaymentFailed"
	EventOrderCancelled     = "OrderCancelled"
)

const (
	TopicOrderCreated       = "shop.order.created"
	TopicOrderPaid          = "shop.order.paid"
	TopicOrderPaymentFailed = "shop.order.payment_failed"
	TopicOrderCancelled     = "shop.order.cancelled"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, traceID, orderID string, payload []byte) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       payload,
	}
}

type OrderCreatedPayload struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	Total         string        `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Items         []OrderItem   `json:"items"`
}

type OrderPaidPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Provider  string `json:"provider"`
	Total     string `json:"total"`
}

type OrderPaymentFailedPayload struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	Reason   string `json:"reason,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// Envelope is the versioned wrapper every event rides in. CorrelationID is
// the order id so downstream consumers can tie events to an order.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderID    string    `json:"order_id"`
	Code       string    `json:"code"`
	Email      string    `json:"email"`
	TotalCents int       `json:"total_cents"`
	Items      []ItemQty `json:"items"`
}

type OrderStatusChangedPayload struct {
	OrderID       string `json:"order_id,omitempty"`
	Code          string `json:"code"`
	From          string `json:"from,omitempty"`
	To            string `json:"to"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

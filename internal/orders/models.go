package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewOrderID returns the correlation token embedded in a charge's metadata.
// It exists nowhere else.
func NewOrderID() string { return uuid.NewString() }

// WebhookEvent is the part of a gateway event notification we act on.
type WebhookEvent struct {
	EventID      string          `json:"event_id"`
	Key          string          `json:"key"` // e.g. charge.complete
	ObjectType   string          `json:"object_type"`
	ChargeID     string          `json:"charge_id,omitempty"`
	ChargeStatus string          `json:"charge_status,omitempty"`
	OrderID      string          `json:"order_id,omitempty"`
	ReceivedAt   time.Time       `json:"received_at"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

package orders

import (
	"encoding/json"
	"time"
)

const (
	EventChargeOutcome   = "ChargeOutcome"
	EventWebhookReceived = "WebhookReceived"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "storefront"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id when known
	Payload       json.RawMessage `json:"payload"`
}

// Where a charge was observed.
const (
	ObservedAtCharge     = "charge"
	ObservedAtCompletion = "completion"
	ObservedAtWebhook    = "webhook"
)

type ChargeOutcomePayload struct {
	OrderID        string `json:"order_id"`
	ChargeID       string `json:"charge_id"`
	Status         Status `json:"status"`
	ObservedAt     string `json:"observed_at"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	SourceType     string `json:"source_type,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}

// WebhookReceivedPayload carries a gateway notification to the webhook worker.
type WebhookReceivedPayload struct {
	Event WebhookEvent `json:"event"`
}

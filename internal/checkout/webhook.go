package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
	kafkax "github.com/ariefcatur/go-omise-storefront/internal/kafka"
	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/ariefcatur/go-omise-storefront/internal/retry"
	kafkago "github.com/segmentio/kafka-go"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

type webhookJSON struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	Key    string `json:"key"`
	Data   struct {
		Object   string         `json:"object"`
		ID       string         `json:"id"`
		Status   string         `json:"status"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
}

// ParseWebhook decodes a gateway event notification. The charge fields it
// extracts are informational; HandleWebhook re-fetches the charge.
func ParseWebhook(body []byte, receivedAt time.Time) (orders.WebhookEvent, error) {
	var wj webhookJSON
	if err := json.Unmarshal(body, &wj); err != nil {
		return orders.WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if wj.ID == "" || wj.Key == "" {
		return orders.WebhookEvent{}, fmt.Errorf("%w: missing id or key", ErrMalformedEvent)
	}
	ev := orders.WebhookEvent{
		EventID:    wj.ID,
		Key:        wj.Key,
		ObjectType: wj.Data.Object,
		ReceivedAt: receivedAt.UTC(),
		Payload:    json.RawMessage(body),
	}
	if ev.ObjectType == "charge" {
		ev.ChargeID = wj.Data.ID
		ev.ChargeStatus = wj.Data.Status
		if id, ok := wj.Data.Metadata["order_id"].(string); ok {
			ev.OrderID = id
		}
	}
	return ev, nil
}

// HandleWebhook reconciles one charge event. Each event id is handled at
// most once; on error the mark is dropped so the caller can retry. Errors
// that a retry cannot fix are marked with retry.Permanent.
func (s *Service) HandleWebhook(ctx context.Context, ev orders.WebhookEvent) error {
	if ev.ObjectType != "charge" || ev.ChargeID == "" {
		return nil
	}

	first, err := s.Tracker.FirstDelivery(ctx, ev.EventID)
	if err != nil {
		return fmt.Errorf("dedupe event %s: %w", ev.EventID, err)
	}
	if !first {
		s.Log.Info(logging.Fields{EventID: ev.EventID, ChargeID: ev.ChargeID, Step: "webhook", Message: "duplicate delivery ignored"})
		return nil
	}

	if s.Journal != nil {
		if _, err := s.Journal.Record(ctx, ev); err != nil {
			s.Log.Warn(logging.Fields{EventID: ev.EventID, Step: "journal", Error: err.Error()})
		}
	}

	outcome, orderID, err := s.reconcile(ctx, ev)
	if err != nil {
		if ferr := s.Tracker.Forget(ctx, ev.EventID); ferr != nil {
			s.Log.Warn(logging.Fields{EventID: ev.EventID, Step: "forget", Error: ferr.Error()})
		}
		return err
	}

	if s.Journal != nil {
		if err := s.Journal.MarkProcessed(ctx, ev.EventID, orderID, outcome); err != nil {
			s.Log.Warn(logging.Fields{EventID: ev.EventID, OrderID: orderID, Step: "journal", Error: err.Error()})
		}
	}
	return nil
}

func (s *Service) reconcile(ctx context.Context, ev orders.WebhookEvent) (orders.Status, string, error) {
	start := time.Now()
	ch, err := s.Gateway.RetrieveCharge(ctx, ev.ChargeID)
	s.Metrics.GatewayCall("retrieve_charge", err, start)
	if err != nil {
		s.logGatewayError(ev.OrderID, "retrieve_charge", err)
		err = fmt.Errorf("retrieve charge %s: %w", ev.ChargeID, err)
		if rejected(err) {
			err = retry.Permanent(err)
		}
		return "", "", err
	}
	if ch.OrderID == "" {
		s.Log.Info(logging.Fields{EventID: ev.EventID, ChargeID: ch.ID, Step: "webhook", Message: "charge carries no order id"})
		return orders.StatusUnknown, "", nil
	}

	out := Classify(ch, ch.OrderID, true)
	if out.Status == orders.StatusUnknown {
		s.Log.Info(logging.Fields{EventID: ev.EventID, OrderID: out.OrderID, ChargeID: ch.ID, Step: "webhook", Message: "charge " + string(ch.Status) + " not settled yet"})
		return out.Status, out.OrderID, nil
	}

	if err := s.apply(ctx, nil, ch, out, orders.ObservedAtWebhook, ev.EventID); err != nil {
		return "", out.OrderID, err
	}
	return out.Status, out.OrderID, nil
}

// rejected reports a gateway answer that will not change on retry, such as
// an unknown charge id. Rate limiting and 5xx are worth another attempt.
func rejected(err error) bool {
	var apiErr *gateway.Error
	return errors.As(err, &apiErr) &&
		apiErr.StatusCode < http.StatusInternalServerError &&
		apiErr.StatusCode != http.StatusTooManyRequests
}

// HandleWebhookMessage is the Kafka consumer entry point for events queued
// by the webhook endpoint.
func (s *Service) HandleWebhookMessage(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m, kafkax.HeaderEventType); t != "" && t != orders.EventWebhookReceived {
		return nil
	}
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// Poison message: log and commit.
		s.Log.Error(logging.Fields{Step: "webhook_consume", Message: "undecodable envelope", Error: err.Error()})
		return nil
	}
	if env.EventType != orders.EventWebhookReceived {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.WebhookReceivedPayload](env.Payload)
	if err != nil {
		s.Log.Error(logging.Fields{EventID: env.EventID, Step: "webhook_consume", Error: err.Error()})
		return nil
	}
	return s.HandleWebhook(ctx, p.Event)
}

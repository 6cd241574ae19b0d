package httpx

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/checkout"
	kafkax "github.com/ariefcatur/go-omise-storefront/internal/kafka"
	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/ariefcatur/go-omise-storefront/internal/retry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxWebhookBody = 1 << 20

var defaultWebhookRetry = retry.Policy{Attempts: 6, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// WebhookHandler acknowledges gateway notifications. Charge events are
// queued on Kafka when Inbox is set. Otherwise they are reconciled in the
// background, retried under Retry, and Drain waits for them on shutdown.
type WebhookHandler struct {
	Service *checkout.Service
	Inbox   checkout.Publisher // optional, storefront.webhook.received
	// Timeout bounds one reconciliation attempt. Zero means 8s.
	Timeout time.Duration
	// Retry applies to inline reconciliation. The zero value retries for
	// about a minute.
	Retry retry.Policy
	Log   *logging.Logger
	// ServiceName is the envelope producer.
	ServiceName string

	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	stop      chan struct{}
}

func (h *WebhookHandler) Register(r chi.Router) {
	h.stopOnce.Do(func() { h.stop = make(chan struct{}) })
	r.Post("/webhook", h.receive)
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.Log.Warn(logging.Fields{Step: "webhook", Message: "unreadable body", Error: err.Error()})
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ev, err := checkout.ParseWebhook(body, time.Now())
	if err != nil {
		h.Log.Warn(logging.Fields{Step: "webhook", Error: err.Error()})
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	h.Log.Info(logging.Fields{EventID: ev.EventID, Step: "webhook", Message: "event " + ev.Key})
	if ev.ObjectType == "charge" {
		h.Log.Info(logging.Fields{
			EventID:  ev.EventID,
			OrderID:  ev.OrderID,
			ChargeID: ev.ChargeID,
			Step:     "webhook",
			Status:   ev.ChargeStatus,
		})
		h.dispatch(r, ev)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) dispatch(r *http.Request, ev orders.WebhookEvent) {
	if h.Inbox != nil {
		env := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventWebhookReceived,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.ServiceName,
			TraceID:       middleware.GetReqID(r.Context()),
			CorrelationID: ev.OrderID,
			Payload:       kafkax.MustMarshal(orders.WebhookReceivedPayload{Event: ev}),
		}
		h.Inbox.Publish([]byte(ev.ChargeID), kafkax.MustMarshal(env),
			kafkax.EventHeaders(orders.EventWebhookReceived, env.EventVersion)...)
		return
	}

	// The gateway never redelivers an acknowledged event, so failures are
	// retried here.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()
		go func() {
			select {
			case <-h.stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		if err := h.policy().Do(ctx, func(ctx context.Context) error {
			actx, acancel := context.WithTimeout(ctx, h.timeout())
			defer acancel()
			return h.Service.HandleWebhook(actx, ev)
		}); err != nil {
			h.Log.Error(logging.Fields{EventID: ev.EventID, ChargeID: ev.ChargeID, Step: "webhook", Message: "reconciliation abandoned", Error: err.Error()})
		}
	}()
}

// Drain waits for background reconciliations. When ctx ends first the
// remaining ones are cancelled and Drain returns once they stop.
func (h *WebhookHandler) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-ctx.Done():
	}
	h.stopOnce.Do(func() { h.stop = make(chan struct{}) })
	h.closeOnce.Do(func() { close(h.stop) })
	<-done
}

func (h *WebhookHandler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 8 * time.Second
	}
	return h.Timeout
}

func (h *WebhookHandler) policy() retry.Policy {
	if h.Retry.Attempts == 0 {
		return defaultWebhookRetry
	}
	return h.Retry
}

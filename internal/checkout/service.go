package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/cart"
	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
	kafkax "github.com/ariefcatur/go-omise-storefront/internal/kafka"
	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/ariefcatur/go-omise-storefront/internal/metrics"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/ariefcatur/go-omise-storefront/internal/session"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotFound = errors.New("order not found")
)

const DefaultAppName = "Omise Go Storefront"

type Gateway interface {
	CreateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error)
	RetrieveCharge(ctx context.Context, id string) (*gateway.Charge, error)
	SearchCharges(ctx context.Context, orderID string) ([]gateway.Charge, error)
	CreateCustomer(ctx context.Context, req gateway.CustomerRequest) (*gateway.Customer, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Tracker interface {
	Link(ctx context.Context, orderID, sessionID string) error
	SessionFor(ctx context.Context, orderID string) (string, error)
	Advance(ctx context.Context, orderID string, to orders.Status) (orders.Status, bool, error)
	Status(ctx context.Context, orderID string) (orders.Status, error)
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Journal interface {
	Record(ctx context.Context, ev orders.WebhookEvent) (bool, error)
	MarkProcessed(ctx context.Context, eventID, orderID string, outcome orders.Status) error
}

type Sessions interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
}

// Service places charges for session carts and settles them as the gateway
// reports back, either on the customer's return or by webhook.
type Service struct {
	Gateway  Gateway
	Prices   cart.Pricer
	Tracker  Tracker
	Sessions Sessions
	Events   Publisher // optional, storefront.charge.outcome
	Journal  Journal   // optional
	Log      *logging.Logger
	Metrics  *metrics.ServerMetrics

	Currency    string
	AppName     string
	AutoCapture bool
	ServiceName string
}

type ChargeInput struct {
	Nonce gateway.PaymentNonce
	Email string
	IP    string
	// BaseURL is scheme://host of the storefront, used for the return URI.
	BaseURL string
	TraceID string
}

// PlaceCharge charges the cart of sess once. On error the returned Outcome
// still carries the order id when one was assigned, and the cart is left as
// it was.
func (s *Service) PlaceCharge(ctx context.Context, sess *session.Session, in ChargeInput) (Outcome, error) {
	c := cart.New(sess, s.Prices)
	if c.IsEmpty() {
		return Outcome{}, ErrEmptyCart
	}
	if err := in.Nonce.Validate(); err != nil {
		return Outcome{}, err
	}
	total, err := c.Total()
	if err != nil {
		return Outcome{}, err
	}
	snapshot, err := c.Snapshot()
	if err != nil {
		return Outcome{}, err
	}

	orderID := orders.NewOrderID()
	out := Outcome{OrderID: orderID}

	nonce := in.Nonce
	if in.Email != "" && nonce.Customer == "" && nonce.Card != "" {
		start := time.Now()
		cust, err := s.Gateway.CreateCustomer(ctx, gateway.CustomerRequest{
			Email:       in.Email,
			Card:        nonce.Card,
			Description: "Order " + orderID,
		})
		s.Metrics.GatewayCall("create_customer", err, start)
		if err != nil {
			s.logGatewayError(orderID, "create_customer", err)
			return out, fmt.Errorf("create customer for order %s: %w", orderID, err)
		}
		nonce = gateway.PaymentNonce{Customer: cust.ID}
	}

	if err := s.Tracker.Link(ctx, orderID, sess.ID); err != nil {
		s.Log.Warn(logging.Fields{OrderID: orderID, Step: "link_session", Error: err.Error()})
	}
	sess.AddPendingOrder(orderID)

	start := time.Now()
	ch, err := s.Gateway.CreateCharge(ctx, gateway.ChargeRequest{
		Amount:   total,
		Currency: s.Currency,
		Nonce:    nonce,
		Metadata: map[string]any{
			"app":                   s.appName(),
			"cart":                  snapshot,
			gateway.MetadataOrderID: orderID,
		},
		ReturnURI:      CompletionURL(in.BaseURL, orderID),
		IP:             in.IP,
		Description:    "Order " + orderID,
		Capture:        s.AutoCapture,
		IdempotencyKey: orderID,
	})
	s.Metrics.GatewayCall("create_charge", err, start)
	if err != nil {
		s.logGatewayError(orderID, "create_charge", err)
		return out, fmt.Errorf("create charge for order %s: %w", orderID, err)
	}

	out = Classify(ch, orderID, false)
	_ = s.apply(ctx, sess, ch, out, orders.ObservedAtCharge, in.TraceID) // logged
	return out, nil
}

// Complete re-fetches the charge of orderID after the customer returns from
// an external authorization page and settles it like PlaceCharge does.
func (s *Service) Complete(ctx context.Context, sess *session.Session, orderID, traceID string) (Outcome, error) {
	out := Outcome{Status: orders.StatusUnknown, OrderID: orderID}

	start := time.Now()
	charges, err := s.Gateway.SearchCharges(ctx, orderID)
	s.Metrics.GatewayCall("search_charges", err, start)
	if err != nil {
		s.logGatewayError(orderID, "search_charges", err)
		return out, fmt.Errorf("search charges for order %s: %w", orderID, err)
	}
	if len(charges) == 0 {
		s.Log.Info(logging.Fields{OrderID: orderID, Step: "complete", Message: "no charge found for order"})
		return out, ErrOrderNotFound
	}

	ch := &charges[0]
	out = Classify(ch, orderID, true)
	_ = s.apply(ctx, sess, ch, out, orders.ObservedAtCompletion, traceID) // logged
	return out, nil
}

// apply records an observed outcome: it advances the order's cached status,
// settles the cart the order was placed for and emits the outcome event. sess
// is the session of the current request, nil for webhooks. The returned error
// is a settlement that could not be stored; it is already logged.
func (s *Service) apply(ctx context.Context, sess *session.Session, ch *gateway.Charge, out Outcome, observedAt, traceID string) error {
	from, applied, trackErr := s.Tracker.Advance(ctx, out.OrderID, out.Status)
	switch {
	case trackErr != nil:
		s.Log.Warn(logging.Fields{OrderID: out.OrderID, ChargeID: out.ChargeID, Step: "advance", Status: string(out.Status), Error: trackErr.Error()})
	case !applied && from != out.Status:
		s.Log.Warn(logging.Fields{
			OrderID:  out.OrderID,
			ChargeID: out.ChargeID,
			Step:     "advance",
			Status:   string(out.Status),
			Message:  fmt.Sprintf("transition %s -> %s refused", from, out.Status),
		})
	}

	var (
		cleared   bool
		settleErr error
	)
	if out.ClearCart {
		cleared, settleErr = s.settle(ctx, sess, out.OrderID)
		if settleErr != nil {
			s.Log.Warn(logging.Fields{OrderID: out.OrderID, ChargeID: out.ChargeID, Step: "settle", Error: settleErr.Error()})
		}
	}

	s.Metrics.Outcome(observedAt, string(out.Status))
	s.publishOutcome(ch, out, observedAt, traceID)
	f := logging.Fields{
		OrderID:  out.OrderID,
		ChargeID: out.ChargeID,
		Step:     observedAt,
		Status:   string(out.Status),
		Message:  fmt.Sprintf("charge %s, cart cleared: %t", ch.Status, cleared),
	}
	if out.Status == orders.StatusFailed {
		f.Error = fmt.Sprintf("%s (%s)", ch.FailureMessage, ch.FailureCode)
		s.Log.Warn(f)
	} else {
		s.Log.Info(f)
	}
	return settleErr
}

// settle empties the cart orderID was placed for. That is sess when the
// order is pending on it, and the session linked to the order at charge time,
// which is loaded and saved here when it is not sess. Settling is keyed on
// the session's pending orders, so repeating it never touches a newer cart.
func (s *Service) settle(ctx context.Context, sess *session.Session, orderID string) (bool, error) {
	cleared := sess != nil && cart.New(sess, s.Prices).Settle(orderID)

	sid, err := s.Tracker.SessionFor(ctx, orderID)
	if errors.Is(err, orders.ErrNoSession) {
		return cleared, nil
	}
	if err != nil {
		return cleared, fmt.Errorf("session link for order %s: %w", orderID, err)
	}
	if sess != nil && sid == sess.ID {
		return cleared, nil
	}

	linked, err := s.Sessions.Load(ctx, sid)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
		return cleared, nil
	}
	if err != nil {
		return cleared, fmt.Errorf("load session for order %s: %w", orderID, err)
	}
	if !cart.New(linked, s.Prices).Settle(orderID) {
		return cleared, nil
	}
	if err := s.Sessions.Save(ctx, linked); err != nil {
		return cleared, fmt.Errorf("save session for order %s: %w", orderID, err)
	}
	return true, nil
}

// SettlePending empties the cart of sess when one of its pending orders has
// already been settled elsewhere, which undoes a stale write of the session.
// It reports whether sess changed.
func (s *Service) SettlePending(ctx context.Context, sess *session.Session) bool {
	for _, id := range append([]string(nil), sess.PendingOrders...) {
		st, err := s.Tracker.Status(ctx, id)
		if err != nil {
			s.Log.Warn(logging.Fields{OrderID: id, Step: "settle_pending", Error: err.Error()})
			return false
		}
		if st.ClearsCart() && cart.New(sess, s.Prices).Settle(id) {
			s.Log.Info(logging.Fields{OrderID: id, Step: "settle_pending", Status: string(st), Message: "cart emptied for settled order"})
			return true
		}
	}
	return false
}

func (s *Service) publishOutcome(ch *gateway.Charge, out Outcome, observedAt, traceID string) {
	if s.Events == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventChargeOutcome,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       traceID,
		CorrelationID: out.OrderID,
		Payload: kafkax.MustMarshal(orders.ChargeOutcomePayload{
			OrderID:        out.OrderID,
			ChargeID:       out.ChargeID,
			Status:         out.Status,
			ObservedAt:     observedAt,
			AmountMinor:    ch.Amount,
			Currency:       strings.ToUpper(ch.Currency),
			SourceType:     ch.Source.Type,
			FailureMessage: out.FailureMessage,
		}),
	}
	s.Events.Publish(orders.PartitionKey(out.OrderID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventChargeOutcome, ev.EventVersion)...)
}

func (s *Service) logGatewayError(orderID, step string, err error) {
	msg := "gateway call failed"
	if gateway.IsGatewayError(err) {
		msg = "gateway call failed, see " + gateway.DocsURL
	}
	s.Log.Error(logging.Fields{OrderID: orderID, Step: step, Message: msg, Error: err.Error()})
}

func (s *Service) appName() string {
	if s.AppName == "" {
		return DefaultAppName
	}
	return s.AppName
}

// CompletionURL is where the gateway sends the customer back to.
func CompletionURL(baseURL, orderID string) string {
	return strings.TrimRight(baseURL, "/") + "/orders/" + orderID + "/complete"
}

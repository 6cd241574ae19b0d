package checkout

import (
	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
)

// Outcome is what the storefront does with a charge it has just observed.
type Outcome struct {
	Status   orders.Status
	OrderID  string
	ChargeID string

	// RedirectURI is set for PendingRedirect: send the customer there.
	RedirectURI string
	// PaymentLink is set for econtext charges: show it, never follow it.
	PaymentLink string
	// References is set for bill payment / barcode charges.
	References *gateway.References

	FailureMessage string
	ClearCart      bool
}

// Classify maps a charge to an Outcome. The first matching rule wins:
//
//  1. successful
//  2. pending econtext source
//  3. pending source with payment references
//  4. pending with an authorize URI, unless the customer already came back
//     from it
//  5. expired
//  6. failed
//  7. anything else is unknown
//
// Classify has no side effects. A nil charge is unknown.
func Classify(ch *gateway.Charge, orderID string, alreadyRedirected bool) Outcome {
	out := Outcome{Status: orders.StatusUnknown, OrderID: orderID}
	if ch == nil {
		return out
	}
	out.ChargeID = ch.ID
	if out.OrderID == "" {
		out.OrderID = ch.OrderID
	}

	pending := ch.Status == gateway.StatusPending
	switch {
	case ch.Status == gateway.StatusSuccessful:
		out.Status = orders.StatusSuccessful
	case pending && ch.Source.Kind == gateway.SourceEcontext:
		out.Status = orders.StatusPendingExternalAction
		out.PaymentLink = ch.AuthorizeURI
	case pending && ch.Source.Kind == gateway.SourceBillPayment:
		out.Status = orders.StatusPendingExternalAction
		out.References = ch.Source.References
	case pending && ch.AuthorizeURI != "" && !alreadyRedirected:
		out.Status = orders.StatusPendingRedirect
		out.RedirectURI = ch.AuthorizeURI
	case ch.Status == gateway.StatusExpired:
		out.Status = orders.StatusExpired
	case ch.Status == gateway.StatusFailed:
		out.Status = orders.StatusFailed
		out.FailureMessage = ch.FailureMessage
	}
	out.ClearCart = out.Status.ClearsCart()
	return out
}

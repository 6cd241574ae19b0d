package checkout

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
)

// Notice is the customer-facing message for an outcome. It never carries
// gateway error detail other than a charge's own failure message.
func (o Outcome) Notice() string {
	switch o.Status {
	case orders.StatusSuccessful:
		return fmt.Sprintf("Payment successful! Order ID: %s", o.OrderID)
	case orders.StatusPendingExternalAction:
		return fmt.Sprintf("Your order has been placed. Please complete the payment using the details below. Order ID: %s", o.OrderID)
	case orders.StatusPendingRedirect:
		return fmt.Sprintf("Redirecting you to complete the payment. Order ID: %s", o.OrderID)
	case orders.StatusExpired:
		return fmt.Sprintf("The payment for order %s has expired. Please try again.", o.OrderID)
	case orders.StatusFailed:
		return fmt.Sprintf(`An error occurred. Please try again or use a different payment method. Here is the message returned from the server: "%s" (Order ID: %s)`, o.FailureMessage, o.OrderID)
	default:
		return fmt.Sprintf("We could not confirm the payment for order %s. Please try again or contact support.", o.OrderID)
	}
}

// ErrorNotice is the customer-facing message for a failed checkout step.
func ErrorNotice(orderID string, err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, gateway.ErrInvalidNonce):
		return "Please choose one payment method."
	case errors.Is(err, ErrOrderNotFound):
		return fmt.Sprintf("Order %s not found.", orderID)
	case orderID == "":
		return "An error occurred. Please contact support."
	default:
		return fmt.Sprintf("An error occurred. Please contact support. Order ID: %s", orderID)
	}
}

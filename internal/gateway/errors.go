package gateway

import (
	"errors"
	"fmt"
)

// DocsURL is where operators look up gateway error codes.
const DocsURL = "https://www.omise.co/api-errors"

// Error is an error object returned by the gateway API (declined card,
// invalid source, bad request, auth failure).
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Location   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("omise %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// TransportError covers everything that is not a gateway answer: network
// failures, timeouts, an open breaker, unreadable responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("omise %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// IsGatewayError reports whether err came from talking to the gateway, as
// opposed to a local failure.
func IsGatewayError(err error) bool {
	var apiErr *Error
	var tErr *TransportError
	return errors.As(err, &apiErr) || errors.As(err, &tErr)
}

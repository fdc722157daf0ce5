package interfaces

import (
	"errors"
	"fmt"
)

// Common error variables returned by the connector.
var (
	// ErrNotConnected is returned when an operation requires a connection
	// that hasn't been established or has been lost
	ErrNotConnected = errors.New("exchange connector not connected")

	// ErrInvalidSymbol is returned when no market exists for a symbol
	ErrInvalidSymbol = errors.New("invalid instrument symbol")

	// ErrExchangeUnavailable is returned for transient server-side failures
	// (HTTP 500/502/504). The transport does not retry; the caller decides.
	ErrExchangeUnavailable = errors.New("exchange API unavailable")

	// ErrAuthenticationRequired is returned when a signed endpoint is called
	// without credentials
	ErrAuthenticationRequired = errors.New("authentication required for this operation")

	// ErrProtocolViolation is returned when the streaming feed sends an
	// unexpected message shape, table, or action. It is fatal for the
	// stream that observed it.
	ErrProtocolViolation = errors.New("stream protocol violation")

	// ErrStreamClosed is returned from operations on a terminated book
	// stream. A closed stream cannot be resumed; construct a new one.
	ErrStreamClosed = errors.New("stream closed")
)

// APIError is a structured error decoded from a non-success REST response.
type APIError struct {
	// Status is the HTTP status code of the response
	Status int

	// Name is the venue's error class (e.g. "HTTPError", "ValidationError")
	Name string

	// Message is the venue's human-readable error text
	Message string

	// Err is the taxonomy sentinel this error wraps, if any
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Name, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap returns the underlying sentinel error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transient server-side failure that
// the caller may choose to retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrExchangeUnavailable)
}

package client

import (
	"errors"
	"fmt"
)

// ErrNoData marks an empty listing or an empty result set. Orchestrators
// treat it as "skip this unit of work", not as a failure.
var ErrNoData = errors.New("no data available")

// ErrNoExpirations is returned when a symbol has no expirations on a date.
var ErrNoExpirations = fmt.Errorf("no expirations: %w", ErrNoData)

// ErrUnderlyingDerivation is returned after the two-expiration, two-right
// spot proxy search finds no usable greeks data.
var ErrUnderlyingDerivation = errors.New("could not derive underlying price")

// StatusError is a non-200 terminal response. It is surfaced without retry.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// APIError is a semantic error carried inside a 200 envelope. Never retried.
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error from %s: %s", e.Endpoint, e.Message)
}

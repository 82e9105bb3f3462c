package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrInvalidRequest is returned for requests that violate the API contract
	// (empty symbol, limit outside 1..1000). Nothing is sent.
	ErrInvalidRequest = errors.New("invalid kline request")

	// ErrNetworkTimeout marks an attempt that hit the per-request timeout.
	ErrNetworkTimeout = errors.New("network timeout")

	// ErrNetwork marks an attempt that failed below HTTP (refused, reset, DNS).
	ErrNetwork = errors.New("network error")

	// ErrRateLimited marks a 429 response.
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError marks a 500 or 503 response.
	ErrServerError = errors.New("exchange unavailable")

	// ErrAccessDenied is returned for 418 (IP banned) and 403 responses.
	ErrAccessDenied = errors.New("access denied")

	// ErrRegionBlocked is returned when both endpoints answer 451.
	ErrRegionBlocked = errors.New("region blocked")

	// ErrUnhandledStatus is returned for any status without a retry rule.
	ErrUnhandledStatus = errors.New("unhandled HTTP status")

	// ErrRetryExhausted is returned when all attempts are used up.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends mid-fetch.
	ErrContextCancelled = errors.New("context cancelled")
)

// HTTPError is a non-200 exchange response with its classification.
type HTTPError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("binance %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("binance %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsTerminal reports whether err ends a fetch for reasons the caller must
// see, as opposed to running out of retries or reading a bad page.
func IsTerminal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrRegionBlocked),
		errors.Is(err, ErrUnhandledStatus),
		errors.Is(err, ErrContextCancelled),
		errors.Is(err, ErrInvalidRequest):
		return true
	default:
		return false
	}
}

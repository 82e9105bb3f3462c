package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestHTTPError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *HTTPError
		expected string
	}{
		{
			name: "with wrapped sentinel",
			err: &HTTPError{
				StatusCode: 418,
				ErrorClass: ErrorClassAccessDenied,
				Message:    "I'm a teapot",
				Err:        ErrAccessDenied,
			},
			expected: "binance access_denied error (status 418): I'm a teapot: access denied",
		},
		{
			name: "without wrapped error",
			err: &HTTPError{
				StatusCode: 404,
				ErrorClass: ErrorClassUnhandled,
				Message:    "Not Found",
			},
			expected: "binance unhandled error (status 404): Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestHTTPError_Unwrap(t *testing.T) {
	err := &HTTPError{StatusCode: 451, ErrorClass: ErrorClassRegionBlocked, Err: ErrRegionBlocked}

	if !errors.Is(err, ErrRegionBlocked) {
		t.Error("errors.Is should find ErrRegionBlocked")
	}
	if errors.Is(err, ErrAccessDenied) {
		t.Error("errors.Is should not find ErrAccessDenied")
	}

	var nilWrapped = &HTTPError{StatusCode: 404}
	if nilWrapped.Unwrap() != nil {
		t.Error("Unwrap() should return nil when Err is unset")
	}
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("page 3: %w", &HTTPError{StatusCode: 403, Err: ErrAccessDenied})

	if got := StatusCode(wrapped); got != 403 {
		t.Errorf("StatusCode() = %d, want 403", got)
	}
	if got := StatusCode(ErrNetworkTimeout); got != 0 {
		t.Errorf("StatusCode() = %d, want 0", got)
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"access denied", &HTTPError{StatusCode: 418, Err: ErrAccessDenied}, true},
		{"region blocked", &HTTPError{StatusCode: 451, Err: ErrRegionBlocked}, true},
		{"unhandled", &HTTPError{StatusCode: 404, Err: ErrUnhandledStatus}, true},
		{"cancelled", fmt.Errorf("%w: context canceled", ErrContextCancelled), true},
		{"invalid request", fmt.Errorf("%w: limit 0", ErrInvalidRequest), true},
		{"exhausted", fmt.Errorf("%w after 5 attempts: %w", ErrRetryExhausted, ErrServerError), false},
		{"timeout", ErrNetworkTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.err); got != tt.want {
				t.Errorf("IsTerminal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

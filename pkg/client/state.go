package client

import (
	"net/http"
	"time"
)

// ErrorClass classifies the outcome of a single attempt.
type ErrorClass string

const (
	// ErrorClassNone is a 200 response with a decodable body.
	ErrorClassNone ErrorClass = ""

	// ErrorClassNetwork represents timeouts and other transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 500 and 503 responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassAccessDenied represents 418 and 403 responses.
	ErrorClassAccessDenied ErrorClass = "access_denied"

	// ErrorClassRegionBlocked represents 451 responses.
	ErrorClassRegionBlocked ErrorClass = "region_blocked"

	// ErrorClassUnhandled represents every other status.
	ErrorClassUnhandled ErrorClass = "unhandled"

	// ErrorClassDecode represents a 200 response whose body is malformed.
	ErrorClassDecode ErrorClass = "decode"
)

// classifyStatus maps an HTTP status to its error class.
func classifyStatus(status int) ErrorClass {
	switch status {
	case http.StatusOK:
		return ErrorClassNone
	case http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case http.StatusTeapot, http.StatusForbidden:
		return ErrorClassAccessDenied
	case http.StatusUnavailableForLegalReasons:
		return ErrorClassRegionBlocked
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return ErrorClassServer
	default:
		return ErrorClassUnhandled
	}
}

// State is a node of the per-page retry state machine.
type State int

const (
	StateAttempting State = iota
	StateBackoffWait
	StateEndpointFallback
	StateSucceeded
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackoffWait:
		return "backoff_wait"
	case StateEndpointFallback:
		return "endpoint_fallback"
	case StateSucceeded:
		return "succeeded"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Endpoint selects which configured base URL an attempt goes to.
type Endpoint int

const (
	EndpointPrimary Endpoint = iota
	EndpointFallback
)

func (e Endpoint) String() string {
	if e == EndpointFallback {
		return "fallback"
	}
	return "primary"
}

// timeoutsBeforeFallback is the timeout count that moves a fetch from the
// primary to the fallback endpoint.
const timeoutsBeforeFallback = 3

// RetryState is the bookkeeping for one FetchPage call.
type RetryState struct {
	State         State
	Attempt       int
	Endpoint      Endpoint
	FallbackTried bool
	Timeouts      int
}

// Step is the result of feeding one attempt outcome into the state machine.
type Step struct {
	From    State
	To      State
	Backoff time.Duration
	// Err is the sentinel behind an abort; nil otherwise.
	Err error
}

func newRetryState() *RetryState {
	return &RetryState{State: StateAttempting, Attempt: 1, Endpoint: EndpointPrimary}
}

// Transition applies the outcome of the current attempt. It updates the
// endpoint bookkeeping and returns the state the fetch moves to. It does no
// I/O and never sleeps.
func (rs *RetryState) Transition(class ErrorClass, cfg RetryConfig) Step {
	step := Step{From: rs.State}

	switch class {
	case ErrorClassNone:
		step.To = StateSucceeded

	case ErrorClassNetwork:
		rs.Timeouts++
		if rs.Timeouts == timeoutsBeforeFallback && rs.Endpoint == EndpointPrimary {
			rs.Endpoint = EndpointFallback
			rs.FallbackTried = true
			step.To = StateEndpointFallback
		} else {
			step.To = StateBackoffWait
			step.Backoff = cfg.TimeoutBackoff
		}

	case ErrorClassRateLimit:
		step.To = StateBackoffWait
		step.Backoff = cfg.RateLimitBackoff

	case ErrorClassServer:
		step.To = StateBackoffWait
		step.Backoff = cfg.ServerErrorBackoff

	case ErrorClassAccessDenied:
		step.To = StateAborted
		step.Err = ErrAccessDenied

	case ErrorClassRegionBlocked:
		if rs.FallbackTried || rs.Endpoint == EndpointFallback {
			step.To = StateAborted
			step.Err = ErrRegionBlocked
		} else {
			rs.Endpoint = EndpointFallback
			rs.FallbackTried = true
			step.To = StateEndpointFallback
		}

	case ErrorClassDecode:
		step.To = StateAborted

	default:
		step.To = StateAborted
		step.Err = ErrUnhandledStatus
	}

	rs.State = step.To
	return step
}

// retryable reports whether a step leads to another attempt.
func (s Step) retryable() bool {
	return s.To == StateBackoffWait || s.To == StateEndpointFallback
}

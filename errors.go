package lumengo

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a gateway failure for retry and messaging decisions.
type ErrorKind string

const (
	// KindAuth is an authentication failure (401). Never retried.
	KindAuth ErrorKind = "Auth"
	// KindPaymentRequired is a billing failure (402). Never retried.
	KindPaymentRequired ErrorKind = "PaymentRequired"
	// KindRateLimited is an upstream 429 or a local token-bucket denial;
	// carries RetryAfter when the server supplied one.
	KindRateLimited ErrorKind = "RateLimited"
	// KindServer is an upstream 5xx.
	KindServer ErrorKind = "ServerError"
	// KindTimeout is a per-attempt deadline expiry.
	KindTimeout ErrorKind = "Timeout"
	// KindNetwork is a transport-level failure before a response arrived.
	KindNetwork ErrorKind = "Network"
	// KindInvalidResponse is a malformed or empty upstream body.
	KindInvalidResponse ErrorKind = "InvalidResponse"
	// KindClient is any other 4xx. Never retried.
	KindClient ErrorKind = "ClientError"
	// KindCancelled is a caller-initiated cancellation.
	KindCancelled ErrorKind = "Cancelled"
	// KindCircuitOpen is a request rejected by an open circuit breaker.
	KindCircuitOpen ErrorKind = "CircuitOpen"
	// KindConfig is an invalid client configuration. Surfaces immediately
	// from Do and is never retried.
	KindConfig ErrorKind = "ConfigError"
)

// GatewayError is the typed error returned by the client. It carries enough
// structure for callers to decide their own retry/messaging behavior without
// parsing upstream-specific text.
type GatewayError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Retryable  bool
	RetryAfter time.Duration
	RequestID  string
	Attempt    int
	MaxRetries int
	Cause      error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches errors by Kind for errors.Is.
func (e *GatewayError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*GatewayError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsTransient reports whether err represents a failure that might succeed on
// retry: rate limiting, server errors, timeouts, network failures, malformed
// responses and open circuits. Auth, billing and other client errors are not
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var gerr *GatewayError
	if errors.As(err, &gerr) {
		switch gerr.Kind {
		case KindRateLimited, KindServer, KindTimeout, KindNetwork, KindInvalidResponse, KindCircuitOpen:
			return true
		default:
			return false
		}
	}

	return false
}

// classifyStatus maps an upstream HTTP status to an error kind and retry
// eligibility.
func classifyStatus(status int) (ErrorKind, bool) {
	switch {
	case status == 401:
		return KindAuth, false
	case status == 402:
		return KindPaymentRequired, false
	case status == 429:
		return KindRateLimited, true
	case status >= 500:
		return KindServer, true
	default:
		return KindClient, false
	}
}

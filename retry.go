package lumengo

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ambiyansyah-risyal/lumengo/internal/backoff"
)

// RetryPolicy decides whether a failed attempt should be retried and after
// what delay. attempt is the 0-based index of the attempt that just failed.
type RetryPolicy interface {
	ShouldRetry(err *GatewayError, attempt int) (time.Duration, bool)
}

// DefaultRetryPolicy retries transient failures with exponential backoff.
// A server-supplied Retry-After on a rate limit response is honored verbatim;
// jitter is never applied to it.
type DefaultRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
	jitter     float64
	calculator *backoff.Calculator
}

// NewDefaultRetryPolicy creates the stock policy. jitter of 0 keeps delays
// exactly at min(maxDelay, baseDelay*multiplier^attempt).
func NewDefaultRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration, multiplier, jitter float64) *DefaultRetryPolicy {
	return &DefaultRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		multiplier: multiplier,
		jitter:     jitter,
		calculator: backoff.Exponential(),
	}
}

// NewDefaultRetryPolicyWithCalculator creates a policy using a specific
// backoff calculator, e.g. backoff.Decorrelated().
func NewDefaultRetryPolicyWithCalculator(maxRetries int, baseDelay, maxDelay time.Duration, multiplier, jitter float64, calc *backoff.Calculator) *DefaultRetryPolicy {
	p := NewDefaultRetryPolicy(maxRetries, baseDelay, maxDelay, multiplier, jitter)
	if calc != nil {
		p.calculator = calc
	}
	return p
}

// ShouldRetry implements RetryPolicy.
func (p *DefaultRetryPolicy) ShouldRetry(err *GatewayError, attempt int) (time.Duration, bool) {
	if err == nil || !err.Retryable {
		return 0, false
	}
	if attempt >= p.maxRetries {
		return 0, false
	}

	if err.Kind == KindRateLimited && err.RetryAfter > 0 {
		return err.RetryAfter, true
	}

	return p.calculator.Calculate(attempt, p.baseDelay, p.maxDelay, p.multiplier, p.jitter), true
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form. Delays are capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}

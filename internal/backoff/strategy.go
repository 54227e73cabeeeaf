package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Calculate returns the backoff duration for attempt (0-based) given the
	// base delay, cap, growth multiplier and jitter fraction.
	Calculate(attempt int, base, max time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialStrategy grows the delay geometrically: base * multiplier^attempt,
// capped at max. With jitter > 0 a uniform random fraction of the computed
// delay is added, still bounded by max.
type ExponentialStrategy struct{}

// Calculate implements Strategy.
func (ExponentialStrategy) Calculate(attempt int, base, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the exponent so the float math cannot overflow.
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(base) * pow(multiplier, attempt))
	if delay < 0 || delay > max {
		delay = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		extra := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+extra > max {
			delay = max
		} else {
			delay += extra
		}
	}
	return delay
}

// DecorrelatedStrategy implements AWS-style decorrelated jitter: a uniform
// delay between base and min(max, base*3^attempt). Smoother tail latencies
// than exponential jitter under sustained contention.
type DecorrelatedStrategy struct{}

// Calculate implements Strategy.
func (DecorrelatedStrategy) Calculate(attempt int, base, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt <= 0 {
		return base
	}
	if attempt > 10 {
		attempt = 10
	}

	lower := float64(base)
	upper := lower * pow(3.0, attempt)

	maxFloat := float64(max)
	if upper > maxFloat || upper < 0 {
		upper = maxFloat
	}
	if upper < lower {
		upper = lower
	}

	delay := time.Duration(lower + rand.Float64()*(upper-lower))
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(b float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= b
	}
	return result
}

// Pow exposes the integer exponentiation helper for callers that compute
// expected delays in tests.
func Pow(b float64, exp int) float64 {
	return pow(b, exp)
}

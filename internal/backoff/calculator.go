package backoff

import (
	"time"
)

// Calculator binds a Strategy to the backoff parameters shared by every
// attempt of a call.
type Calculator struct {
	strategy Strategy
}

// NewCalculator creates a calculator using the given strategy.
func NewCalculator(strategy Strategy) *Calculator {
	return &Calculator{strategy: strategy}
}

// Calculate computes the delay for attempt with the supplied parameters.
func (c *Calculator) Calculate(attempt int, base, max time.Duration, multiplier, jitter float64) time.Duration {
	return c.strategy.Calculate(attempt, base, max, multiplier, jitter)
}

// Exponential returns a calculator with the exponential strategy, the
// package default.
func Exponential() *Calculator {
	return NewCalculator(ExponentialStrategy{})
}

// Decorrelated returns a calculator with AWS-style decorrelated jitter.
func Decorrelated() *Calculator {
	return NewCalculator(DecorrelatedStrategy{})
}

package lumengo

import (
	"time"
)

// Message is a single chat-style message in a generation request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the payload sent to the upstream generation endpoint. It is
// treated as immutable once submitted; two requests with identical fields
// produce identical fingerprints regardless of construction order.
type Request struct {
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	Modalities  []string       `json:"modalities,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Result is the outcome of a successful generation call.
type Result struct {
	// TextContent is the assistant message content.
	TextContent string
	// ImageURL is the first generated image URL, when the upstream returned one.
	ImageURL string
	// RequestID is the upstream response id when present, otherwise the
	// client-generated id for the call.
	RequestID string
	// Cached reports whether the result was served from the response cache.
	Cached bool
	// RetryCount is the number of retries spent before the attempt succeeded.
	RetryCount int
}

// CacheEntry is a cached Result with its lifetime bounds. Entries are owned
// exclusively by the cache; expired entries are purged lazily on Get and by
// the background sweep.
type CacheEntry struct {
	Result    Result
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ResultCache stores generation results keyed by request fingerprint.
type ResultCache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, result Result, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// CacheCondition decides whether a request's result may be cached.
type CacheCondition func(req *Request) bool

// DeduplicationCondition decides whether a request may be coalesced with an
// identical in-flight request.
type DeduplicationCondition func(req *Request) bool

// Option configures a Client at construction time.
type Option func(*Client)

// CircuitBreakerConfig holds circuit breaker thresholds. Zero values take
// defaults in NewCircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// CircuitState is the current circuit breaker state.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

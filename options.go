package lumengo

import (
	"fmt"
	"net/http"
	"time"
)

// WithAPIKey sets the upstream API key. Required; a client without one fails
// validation and every Do returns a KindConfig error.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithEndpoint overrides the upstream endpoint URL.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = url
	}
}

// WithDefaultModel sets the model used by the convenience wrappers.
func WithDefaultModel(model string) Option {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-attempt hard deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts after the first.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBaseDelay sets the first backoff delay.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = d
	}
}

// WithRetryMaxDelay caps the backoff delay.
func WithRetryMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryMaxDelay = d
	}
}

// WithBackoffMultiplier sets the backoff growth factor.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.backoffMultiplier = f
	}
}

// WithJitter sets the jitter fraction added to generic backoff delays,
// clamped to [0, 1]. Jitter is never applied to server-supplied Retry-After
// delays. The default is 0.
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithRetryPolicy replaces the stock retry policy entirely.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = p
	}
}

// WithCache enables the default in-memory response cache with the given TTL.
// Caching is on by default with a 5 minute TTL.
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = NewInMemoryCache()
		c.cacheTTL = ttl
	}
}

// WithCustomCache sets a caller-supplied cache implementation.
func WithCustomCache(cache ResultCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithoutCache disables response caching.
func WithoutCache() Option {
	return func(c *Client) {
		c.cache = nil
	}
}

// WithCacheSweepInterval sets how often the background sweep removes expired
// entries. The sweep only bounds memory; expiry on Get is what guarantees
// freshness.
func WithCacheSweepInterval(d time.Duration) Option {
	return func(c *Client) {
		c.cacheSweepInterval = d
	}
}

// WithCacheCondition sets a predicate deciding which requests are cacheable.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) {
		c.cacheCondition = fn
	}
}

// WithDeduplication enables request de-duplication (on by default).
func WithDeduplication() Option {
	return func(c *Client) {
		if c.dedup == nil {
			c.dedup = NewDeduplicator()
		}
	}
}

// WithoutDeduplication disables request de-duplication.
func WithoutDeduplication() Option {
	return func(c *Client) {
		c.dedup = nil
	}
}

// WithDeduplicationCondition sets a predicate deciding which requests may be
// coalesced.
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithMaxConcurrent bounds the number of simultaneous upstream calls.
// Excess requests wait in FIFO order. The default is 10.
func WithMaxConcurrent(n int) Option {
	return func(c *Client) {
		c.limiter = NewConcurrencyLimiter(n)
	}
}

// WithRateLimiter enables a client-side token bucket.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithCircuitBreaker enables a circuit breaker in front of the upstream.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a logger for debug output; nil keeps the client silent.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDGenerator replaces the default UUID request-ID generator.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// ValidateConfiguration checks the assembled configuration and returns a
// KindConfig error describing every problem found.
func (c *Client) ValidateConfiguration() *GatewayError {
	var problems []string

	problems = append(problems, c.validateCredentials()...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateLimiterConfig()...)
	problems = append(problems, c.validateRateLimiterConfig()...)
	problems = append(problems, c.validateCircuitBreakerConfig()...)

	if len(problems) > 0 {
		return &GatewayError{
			Kind:    KindConfig,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}

	return nil
}

func (c *Client) validateCredentials() []string {
	var problems []string

	if c.apiKey == "" {
		problems = append(problems, "apiKey is required")
	}
	if c.endpoint == "" {
		problems = append(problems, "endpoint must not be empty")
	}
	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}

	return problems
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.maxRetries < 0 {
		problems = append(problems, "maxRetries must be non-negative")
	}
	if c.retryBaseDelay <= 0 {
		problems = append(problems, "retryBaseDelay must be positive")
	}
	if c.retryMaxDelay < c.retryBaseDelay {
		problems = append(problems, "retryMaxDelay must be greater than or equal to retryBaseDelay")
	}
	if c.backoffMultiplier <= 0 {
		problems = append(problems, "backoffMultiplier must be positive")
	}
	if c.jitter < 0 || c.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}

	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string

	if c.cache != nil {
		if c.cacheTTL <= 0 {
			problems = append(problems, "cacheTTL must be positive when cache is enabled")
		}
		if c.cacheCondition == nil {
			problems = append(problems, "cacheCondition must be set when cache is enabled")
		}
	}

	return problems
}

func (c *Client) validateLimiterConfig() []string {
	var problems []string

	if c.limiter == nil {
		problems = append(problems, "concurrency limiter cannot be nil")
	}
	if c.dedup != nil && c.dedupCondition == nil {
		problems = append(problems, "deduplication condition must be set when deduplication is enabled")
	}

	return problems
}

func (c *Client) validateRateLimiterConfig() []string {
	var problems []string

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens <= 0 {
			problems = append(problems, "rateLimiter maxTokens must be positive")
		}
		if c.rateLimiter.refillRate <= 0 {
			problems = append(problems, "rateLimiter refillRate must be positive")
		}
	}

	return problems
}

func (c *Client) validateCircuitBreakerConfig() []string {
	var problems []string

	if c.circuitBreaker != nil {
		if c.circuitBreaker.config.FailureThreshold <= 0 {
			problems = append(problems, "circuitBreaker FailureThreshold must be positive")
		}
		if c.circuitBreaker.config.RecoveryTimeout <= 0 {
			problems = append(problems, "circuitBreaker RecoveryTimeout must be positive")
		}
		if c.circuitBreaker.config.SuccessThreshold <= 0 {
			problems = append(problems, "circuitBreaker SuccessThreshold must be positive")
		}
	}

	return problems
}

package lumengo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client is a resilient gateway client for an AI generation endpoint. It
// layers response caching, request de-duplication, bounded concurrency and
// retries with backoff around a single upstream HTTP call, and is safe for
// concurrent use. Every Client owns its cache, dedup table, limiter and
// counters; independently configured clients never share state.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	apiKey       string
	defaultModel string

	timeout           time.Duration
	maxRetries        int
	retryBaseDelay    time.Duration
	retryMaxDelay     time.Duration
	backoffMultiplier float64
	jitter            float64
	retryPolicy       RetryPolicy

	cache              ResultCache
	cacheTTL           time.Duration
	cacheSweepInterval time.Duration
	cacheCondition     CacheCondition

	dedup          *Deduplicator
	dedupCondition DeduplicationCondition

	limiter        *ConcurrencyLimiter
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker

	stats        *statsTracker
	metrics      *MetricsCollector
	logger       Logger
	requestIDGen func() string

	validationError *GatewayError
}

// New constructs a Client from the provided functional options. Validation
// runs at construction; an invalid configuration is reported by the first
// call to Do (and by ValidationError) as a KindConfig error, never retried.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:         &http.Client{},
		endpoint:           DefaultEndpoint,
		defaultModel:       "google/gemini-2.5-flash-image",
		timeout:            60 * time.Second,
		maxRetries:         2,
		retryBaseDelay:     time.Second,
		retryMaxDelay:      30 * time.Second,
		backoffMultiplier:  2.0,
		jitter:             0,
		cache:              NewInMemoryCache(),
		cacheTTL:           5 * time.Minute,
		cacheSweepInterval: 60 * time.Second,
		cacheCondition:     DefaultCacheCondition,
		dedup:              NewDeduplicator(),
		dedupCondition:     DefaultDeduplicationCondition,
		limiter:            NewConcurrencyLimiter(10),
		stats:              newStatsTracker(),
		requestIDGen:       uuid.NewString,
	}

	for _, option := range options {
		option(client)
	}

	if client.retryPolicy == nil {
		client.retryPolicy = NewDefaultRetryPolicy(
			client.maxRetries,
			client.retryBaseDelay,
			client.retryMaxDelay,
			client.backoffMultiplier,
			client.jitter,
		)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	} else if mem, ok := client.cache.(*InMemoryCache); ok {
		mem.StartSweeper(client.cacheSweepInterval)
	}

	return client
}

// Do executes a generation request through the full reliability stack:
// fingerprint, cache, de-duplication, concurrency limit, retry loop, HTTP.
func (c *Client) Do(ctx context.Context, req *Request) (*Result, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}
	if req == nil {
		return nil, &GatewayError{Kind: KindClient, Message: "nil request"}
	}

	start := time.Now()
	model := req.Model
	requestID := c.requestIDGen()

	c.stats.recordRequest()
	c.metrics.RecordRequestStart(model)

	fingerprint := Fingerprint(req)
	cacheEnabled := c.cache != nil && c.cacheCondition(req)

	if cacheEnabled {
		if entry, found := c.cache.Get(fingerprint); found {
			if c.logger != nil {
				c.logger.Debug("cache hit", "requestID", requestID, "fingerprint", fingerprint)
			}
			c.stats.recordCacheHit()
			c.metrics.RecordCacheHit(model)

			result := entry.Result
			result.Cached = true
			c.finishSuccess(model, start)
			return &result, nil
		}
	}

	if c.dedup != nil && c.dedupCondition(req) {
		return c.doDeduplicated(ctx, req, fingerprint, requestID, model, cacheEnabled, start)
	}

	if cacheEnabled {
		c.stats.recordCacheMiss()
		c.metrics.RecordCacheMiss(model)
	}

	result, gerr := c.executeUpstream(ctx, req, requestID)
	if gerr != nil {
		c.finishError(model, gerr, start)
		return nil, gerr
	}

	if cacheEnabled {
		c.storeInCache(fingerprint, result)
	}
	c.finishSuccess(model, start)
	return result, nil
}

// doDeduplicated joins an in-flight identical call or registers a new one.
// The owning call runs in its own goroutine under an internally-owned context
// so that one caller's cancellation never aborts the shared upstream call;
// only the departure of the last waiter does.
func (c *Client) doDeduplicated(ctx context.Context, req *Request, fingerprint, requestID, model string, cacheEnabled bool, start time.Time) (*Result, error) {
	call, owner := c.dedup.joinOrRegister(fingerprint)

	if !owner {
		if c.logger != nil {
			c.logger.Debug("joined in-flight call", "requestID", requestID, "fingerprint", fingerprint)
		}
		c.stats.recordDeduplicated()
		c.metrics.RecordDeduplicationHit(model)

		shared, err := call.wait(ctx)
		if err != nil {
			gerr, ok := err.(*GatewayError)
			if !ok {
				gerr = &GatewayError{Kind: KindNetwork, Message: "in-flight call failed", Cause: err}
			}
			c.finishError(model, gerr, start)
			return nil, gerr
		}

		result := *shared
		result.Cached = false
		c.finishSuccess(model, start)
		return &result, nil
	}

	// The cache miss is attributed to the owner only, so that
	// hits + misses always equals the requests not served via dedup.
	if cacheEnabled {
		c.stats.recordCacheMiss()
		c.metrics.RecordCacheMiss(model)
	}

	ownerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	call.setCancel(cancel)

	go func() {
		defer cancel()
		result, gerr := c.executeUpstream(ownerCtx, req, requestID)
		if gerr != nil {
			c.dedup.complete(fingerprint, call, nil, gerr)
			return
		}
		if cacheEnabled {
			c.storeInCache(fingerprint, result)
		}
		c.dedup.complete(fingerprint, call, result, nil)
	}()

	shared, err := call.wait(ctx)
	if err != nil {
		gerr, ok := err.(*GatewayError)
		if !ok {
			gerr = &GatewayError{Kind: KindNetwork, Message: "in-flight call failed", Cause: err}
		}
		c.finishError(model, gerr, start)
		return nil, gerr
	}

	result := *shared
	result.Cached = false
	c.finishSuccess(model, start)
	return &result, nil
}

// executeUpstream runs the retry loop for one upstream call. The concurrency
// slot is held across retries so backoff waits still count against the bound.
func (c *Client) executeUpstream(ctx context.Context, req *Request, requestID string) (*Result, *GatewayError) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, &GatewayError{
			Kind:      KindCancelled,
			Message:   "cancelled while queued for admission",
			RequestID: requestID,
			Cause:     err,
		}
	}
	defer c.limiter.Release()

	var lastErr *GatewayError
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if c.logger != nil {
				c.logger.Info("retrying", "requestID", requestID, "attempt", attempt, "maxRetries", c.maxRetries)
			}
			c.stats.recordRetry()
			c.metrics.RecordRetry(req.Model, attempt)
		}

		switch {
		case c.rateLimiter != nil && !c.rateLimiter.Allow():
			c.stats.recordRateLimited()
			c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.Tokens())
			lastErr = c.newError(KindRateLimited, "client-side rate limit exceeded", nil, requestID, attempt, 0)
		case c.circuitBreaker != nil && !c.circuitBreaker.Allow():
			c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
			lastErr = c.newError(KindCircuitOpen, "circuit breaker is open", nil, requestID, attempt, 0)
		default:
			result, gerr := c.callUpstream(ctx, req, requestID, attempt)
			c.observeBreaker(gerr)
			if gerr == nil {
				result.RetryCount = attempt
				return result, nil
			}
			if gerr.Kind == KindRateLimited {
				c.stats.recordRateLimited()
			}
			if gerr.Kind == KindCancelled {
				return nil, gerr
			}
			lastErr = gerr
		}

		delay, retry := c.retryPolicy.ShouldRetry(lastErr, attempt)
		if !retry {
			return nil, lastErr
		}

		if c.logger != nil {
			c.logger.Info("backing off", "requestID", requestID, "delay", delay, "kind", lastErr.Kind)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &GatewayError{
				Kind:      KindCancelled,
				Message:   "cancelled during backoff",
				RequestID: requestID,
				Attempt:   attempt,
				Cause:     ctx.Err(),
			}
		}
	}
}

// observeBreaker feeds upstream outcomes into the circuit breaker. Only
// infrastructure failures trip it; caller-class errors do not.
func (c *Client) observeBreaker(gerr *GatewayError) {
	if c.circuitBreaker == nil {
		return
	}
	if gerr == nil {
		c.circuitBreaker.RecordSuccess()
	} else {
		switch gerr.Kind {
		case KindServer, KindTimeout, KindNetwork:
			c.circuitBreaker.RecordFailure()
		}
	}
	c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	if c.validationError == nil {
		return nil
	}
	return c.validationError
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// Close releases background resources (the cache sweeper). The client must
// not be used after Close.
func (c *Client) Close() {
	if mem, ok := c.cache.(*InMemoryCache); ok {
		mem.Stop()
	}
}

// GenerateImage requests an image for prompt using the client's default
// model, returning the first image URL alongside any accompanying text.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*Result, error) {
	return c.Do(ctx, &Request{
		Model:      c.defaultModel,
		Messages:   []Message{{Role: "user", Content: prompt}},
		Modalities: []string{"image", "text"},
	})
}

// Translate asks the model to translate text into targetLang and returns the
// translation as TextContent.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (*Result, error) {
	system := fmt.Sprintf("You are a translator. Translate the user's text to %s. Reply with the translation only.", targetLang)
	return c.Do(ctx, &Request{
		Model: c.defaultModel,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
	})
}

func (c *Client) storeInCache(fingerprint string, result *Result) {
	c.cache.Set(fingerprint, *result, c.cacheTTL)
	if mem, ok := c.cache.(*InMemoryCache); ok {
		c.metrics.RecordCacheSize("default", mem.Len())
	}
}

func (c *Client) finishSuccess(model string, start time.Time) {
	duration := time.Since(start)
	c.stats.recordLatency(duration)
	c.metrics.RecordRequest(model, http.StatusOK, duration)
	c.metrics.RecordRequestEnd(model)
}

func (c *Client) finishError(model string, gerr *GatewayError, start time.Time) {
	duration := time.Since(start)
	c.stats.recordLatency(duration)
	c.stats.recordError()
	c.metrics.RecordError(gerr.Kind, model)
	c.metrics.RecordRequest(model, gerr.StatusCode, duration)
	c.metrics.RecordRequestEnd(model)
	if c.logger != nil {
		c.logger.Warn("request failed", "kind", gerr.Kind, "status", gerr.StatusCode, "message", gerr.Message)
	}
}

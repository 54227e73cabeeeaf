package lumengo

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats is a point-in-time snapshot of a client's counters. Reading a
// snapshot has no side effects.
type Stats struct {
	TotalRequests  uint64
	CacheHits      uint64
	CacheMisses    uint64
	Deduplicated   uint64
	Retries        uint64
	Errors         uint64
	RateLimited    uint64
	AverageLatency time.Duration
}

// statsTracker accumulates per-client counters and a running mean latency.
// The mean is updated incrementally so no per-request history is kept.
type statsTracker struct {
	mu        sync.Mutex
	stats     Stats
	completed uint64
}

func newStatsTracker() *statsTracker {
	return &statsTracker{}
}

func (s *statsTracker) recordRequest() {
	s.mu.Lock()
	s.stats.TotalRequests++
	s.mu.Unlock()
}

func (s *statsTracker) recordCacheHit() {
	s.mu.Lock()
	s.stats.CacheHits++
	s.mu.Unlock()
}

func (s *statsTracker) recordCacheMiss() {
	s.mu.Lock()
	s.stats.CacheMisses++
	s.mu.Unlock()
}

func (s *statsTracker) recordDeduplicated() {
	s.mu.Lock()
	s.stats.Deduplicated++
	s.mu.Unlock()
}

func (s *statsTracker) recordRetry() {
	s.mu.Lock()
	s.stats.Retries++
	s.mu.Unlock()
}

func (s *statsTracker) recordError() {
	s.mu.Lock()
	s.stats.Errors++
	s.mu.Unlock()
}

func (s *statsTracker) recordRateLimited() {
	s.mu.Lock()
	s.stats.RateLimited++
	s.mu.Unlock()
}

func (s *statsTracker) recordLatency(d time.Duration) {
	s.mu.Lock()
	s.completed++
	delta := d - s.stats.AverageLatency
	s.stats.AverageLatency += delta / time.Duration(s.completed)
	s.mu.Unlock()
}

func (s *statsTracker) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// MetricsCollector exports the request lifecycle to Prometheus. All record
// methods are nil-safe so call sites need no guards. It is safe for
// concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	deduplicationHits *prometheus.CounterVec

	rateLimiterTokens   *prometheus.GaugeVec
	circuitBreakerState *prometheus.GaugeVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer; tests pass a private registry to avoid duplicate registration.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumengo_requests_total",
				Help: "Total number of gateway requests",
			},
			[]string{"model", "status_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lumengo_request_duration_seconds",
				Help:    "Duration of gateway requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "status_code"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lumengo_requests_in_flight",
				Help: "Number of gateway requests currently in flight",
			},
			[]string{"model"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumengo_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"model", "attempt"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumengo_cache_hits_total",
				Help: "Total number of response cache hits",
			},
			[]string{"model"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumengo_cache_misses_total",
				Help: "Total number of response cache misses",
			},
			[]string{"model"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lumengo_cache_size",
				Help: "Current number of entries in the response cache",
			},
			[]string{"name"},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumengo_deduplication_hits_total",
				Help: "Total number of requests coalesced into an in-flight call",
			},
			[]string{"model"},
		),
		rateLimiterTokens: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lumengo_rate_limiter_tokens",
				Help: "Current number of available rate limiter tokens",
			},
			[]string{"name"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lumengo_circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumengo_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind", "model"},
		),
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(model string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(model, status).Inc()
	mc.requestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(model string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(model).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(model string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(model).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(model string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(model, strconv.Itoa(attempt)).Inc()
}

// RecordCacheHit increments the cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(model string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(model).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(model string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(model).Inc()
}

// RecordCacheSize sets the cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordDeduplicationHit increments the coalesced-request counter.
func (mc *MetricsCollector) RecordDeduplicationHit(model string) {
	if mc == nil {
		return
	}
	mc.deduplicationHits.WithLabelValues(model).Inc()
}

// RecordRateLimiterTokens sets the available-token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(name string, tokens int) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.WithLabelValues(name).Set(float64(tokens))
}

// RecordCircuitBreakerState sets the breaker state gauge.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}
	var v float64
	switch state {
	case StateClosed:
		v = 0
	case StateOpen:
		v = 1
	case StateHalfOpen:
		v = 2
	}
	mc.circuitBreakerState.WithLabelValues(name).Set(v)
}

// RecordError increments the error counter for a kind.
func (mc *MetricsCollector) RecordError(kind ErrorKind, model string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(string(kind), model).Inc()
}

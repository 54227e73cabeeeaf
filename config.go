package lumengo

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment variables read by OptionsFromEnv.
const envPrefix = "LUMENGO_"

// OptionsFromEnv builds client options from LUMENGO_* environment variables.
// Recognized variables (all optional except LUMENGO_API_KEY, whose absence
// is caught by configuration validation at construction):
//
//	LUMENGO_API_KEY              upstream credential
//	LUMENGO_ENDPOINT             upstream URL
//	LUMENGO_MODEL                default model for convenience wrappers
//	LUMENGO_TIMEOUT_MS           per-attempt deadline
//	LUMENGO_MAX_RETRIES          retry budget after the first attempt
//	LUMENGO_RETRY_BASE_DELAY_MS  first backoff delay
//	LUMENGO_CACHE_ENABLED        "false" disables the response cache
//	LUMENGO_CACHE_TTL_MS         cache entry lifetime
//	LUMENGO_DEDUP_ENABLED        "false" disables de-duplication
//	LUMENGO_MAX_CONCURRENT       concurrent upstream call bound
//	LUMENGO_METRICS_ENABLED      "true" registers Prometheus metrics
//
// Typical use: lumengo.New(append(opts, envOpts...)...).
func OptionsFromEnv() ([]Option, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var options []Option

	if v := k.String("api.key"); v != "" {
		options = append(options, WithAPIKey(v))
	}
	if v := k.String("endpoint"); v != "" {
		options = append(options, WithEndpoint(v))
	}
	if v := k.String("model"); v != "" {
		options = append(options, WithDefaultModel(v))
	}
	if k.Exists("timeout.ms") {
		options = append(options, WithTimeout(time.Duration(k.Int64("timeout.ms"))*time.Millisecond))
	}
	if k.Exists("max.retries") {
		options = append(options, WithMaxRetries(k.Int("max.retries")))
	}
	if k.Exists("retry.base.delay.ms") {
		options = append(options, WithRetryBaseDelay(time.Duration(k.Int64("retry.base.delay.ms"))*time.Millisecond))
	}
	if k.Exists("cache.enabled") && !k.Bool("cache.enabled") {
		options = append(options, WithoutCache())
	} else if k.Exists("cache.ttl.ms") {
		options = append(options, WithCache(time.Duration(k.Int64("cache.ttl.ms"))*time.Millisecond))
	}
	if k.Exists("dedup.enabled") && !k.Bool("dedup.enabled") {
		options = append(options, WithoutDeduplication())
	}
	if k.Exists("max.concurrent") {
		options = append(options, WithMaxConcurrent(k.Int("max.concurrent")))
	}
	if k.Bool("metrics.enabled") {
		options = append(options, WithMetrics())
	}

	return options, nil
}

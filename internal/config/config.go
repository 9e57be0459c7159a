// Package config centralizes the recipe manager's environment-driven
// runtime knobs: HTTP timeouts, fetch retry behavior, and cache TTLs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// EnvAPITimeout is the HTTP timeout knob read by GetAPITimeout. The
	// artifact fetcher and the PyPI correction lookup use their own
	// fixed client timeouts and do not read it.
	EnvAPITimeout = "CRM_API_TIMEOUT"

	// EnvFetchRetries configures how many attempts _fetch_archive makes
	// before giving up (spec.md 4.9).
	EnvFetchRetries = "CRM_FETCH_RETRIES"

	// EnvFetchRetryInterval is the linear-backoff base interval knob read
	// by GetFetchRetryInterval. The crm CLI takes its interval from the
	// --retry-interval flag instead and does not read it.
	EnvFetchRetryInterval = "CRM_FETCH_RETRY_INTERVAL"

	// EnvCacheTTL is the cache validity knob read by GetCacheTTL. The
	// PyPI lookup cache is bounded by size only and does not read it.
	EnvCacheTTL = "CRM_CACHE_TTL"

	// DefaultAPITimeout is the default per-request HTTP timeout.
	DefaultAPITimeout = 30 * time.Second

	// DefaultFetchRetries is the default number of fetch attempts.
	DefaultFetchRetries = 3

	// DefaultFetchRetryInterval is the default linear-backoff base.
	DefaultFetchRetryInterval = 2 * time.Second

	// DefaultCacheTTL is the default cache validity window.
	DefaultCacheTTL = 5 * time.Minute
)

// GetAPITimeout returns the configured HTTP timeout from CRM_API_TIMEOUT.
// If unset or invalid, returns DefaultAPITimeout. Accepts duration
// strings like "30s", "1m", "2m30s". Values are clamped to [1s, 10m].
func GetAPITimeout() time.Duration {
	return durationFromEnv(EnvAPITimeout, DefaultAPITimeout, time.Second, 10*time.Minute)
}

// GetFetchRetries returns the configured fetch attempt count from
// CRM_FETCH_RETRIES. If unset or invalid, returns DefaultFetchRetries.
// Values are clamped to [1, 10].
func GetFetchRetries() int {
	envValue := os.Getenv(EnvFetchRetries)
	if envValue == "" {
		return DefaultFetchRetries
	}
	n, err := strconv.Atoi(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %d\n",
			EnvFetchRetries, envValue, DefaultFetchRetries)
		return DefaultFetchRetries
	}
	if n < 1 {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%d), using minimum 1\n", EnvFetchRetries, n)
		return 1
	}
	if n > 10 {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%d), using maximum 10\n", EnvFetchRetries, n)
		return 10
	}
	return n
}

// GetFetchRetryInterval returns the configured linear-backoff base
// interval from CRM_FETCH_RETRY_INTERVAL.
func GetFetchRetryInterval() time.Duration {
	return durationFromEnv(EnvFetchRetryInterval, DefaultFetchRetryInterval, 100*time.Millisecond, time.Minute)
}

// GetCacheTTL returns the configured cache TTL from CRM_CACHE_TTL.
func GetCacheTTL() time.Duration {
	return durationFromEnv(EnvCacheTTL, DefaultCacheTTL, time.Second, 24*time.Hour)
}

func durationFromEnv(envVar string, def, min, max time.Duration) time.Duration {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return def
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n", envVar, envValue, def)
		return def
	}

	if duration < min {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum %v\n", envVar, duration, min)
		return min
	}
	if duration > max {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum %v\n", envVar, duration, max)
		return max
	}

	return duration
}

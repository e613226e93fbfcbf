package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates the breaker configuration failed validation.
var ErrInvalidConfig = errors.New("circuitbreaker: invalid config")

// Config holds circuit breaker configuration. All values must be positive.
type Config struct {
	FailureThreshold int           // Consecutive failures that open the breaker
	SuccessThreshold int           // Consecutive half-open successes that close it
	Timeout          time.Duration // Dwell time before an open breaker admits a trial
	HalfOpenMaxCalls int           // Max concurrent trial calls while half-open
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("%w: failure threshold must be > 0, got %d", ErrInvalidConfig, c.FailureThreshold)
	}

	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("%w: success threshold must be > 0, got %d", ErrInvalidConfig, c.SuccessThreshold)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0, got %v", ErrInvalidConfig, c.Timeout)
	}

	if c.HalfOpenMaxCalls <= 0 {
		return fmt.Errorf("%w: half-open max calls must be > 0, got %d", ErrInvalidConfig, c.HalfOpenMaxCalls)
	}

	return nil
}

// DefaultConfig provides balanced settings for most protected resources.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// NotificationChannelConfig tolerates more failures before tripping, so a
// flapping notification channel is not cut off too eagerly.
func NotificationChannelConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          120 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// AggressiveConfig trips fast and retries recovery quickly, for resources
// where stale data is worse than a skipped cycle.
func AggressiveConfig() Config {
	return Config{
		FailureThreshold: 2,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Package gps wraps dog location fetches with a fast retry budget.
//
// Location sources are polled every cycle anyway, so there is no circuit
// breaker here: a failed fix is retried quickly and then simply skipped
// until the next cycle.
package gps

import (
	"context"
	"fmt"
	"time"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/log"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/retry"
)

// Point is one GPS fix for a dog.
type Point struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AccuracyM  float64   `json:"accuracy_m"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Source produces the current location of a dog's tracker.
type Source interface {
	Locate(ctx context.Context, dogID string) (Point, error)
}

// RetryConfig is the fast location retry budget: three quick attempts with
// sub-second initial delay, so a missed fix resolves within the same cycle.
func RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Tracker fetches dog locations through the resilience manager.
type Tracker struct {
	manager     *resilience.Manager
	source      Source
	logger      log.Logger
	retryConfig retry.Config
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithRetryConfig overrides the default location retry budget.
func WithRetryConfig(config retry.Config) Option {
	return func(t *Tracker) {
		t.retryConfig = config
	}
}

// NewTracker creates a Tracker. A nil logger is replaced with a no-op logger.
func NewTracker(manager *resilience.Manager, source Source, logger log.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = log.NewNop()
	}

	t := &Tracker{
		manager:     manager,
		source:      source,
		logger:      logger,
		retryConfig: RetryConfig(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Locate returns the dog's current position, retrying transient failures.
func (t *Tracker) Locate(ctx context.Context, dogID string) (Point, error) {
	result, err := t.manager.Retry(ctx, t.retryConfig, func(ctx context.Context) (any, error) {
		return t.source.Locate(ctx, dogID)
	})
	if err != nil {
		t.logger.Log(ctx, log.LevelWarn, "location fix failed",
			log.String("dog_id", dogID),
			log.Err(err),
		)

		return Point{}, err
	}

	point, ok := result.(Point)
	if !ok {
		return Point{}, fmt.Errorf("gps: unexpected locate result %T", result)
	}

	return point, nil
}

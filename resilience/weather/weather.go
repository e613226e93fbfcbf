// Package weather fetches current conditions with a slow-growth retry
// budget and scores them for dog walk suitability.
//
// Weather providers rate-limit aggressively, so the retry curve grows
// gently and gives up after a second attempt; a skipped update is served
// from the previous cycle by the caller.
package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/log"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/retry"
)

// Conditions is one weather observation.
type Conditions struct {
	TemperatureC float64   `json:"temperature_c"`
	Humidity     int       `json:"humidity"`
	WindKmh      float64   `json:"wind_kmh"`
	Condition    string    `json:"condition"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Source produces current weather conditions.
type Source interface {
	Current(ctx context.Context) (Conditions, error)
}

// RetryConfig is the weather retry budget: two attempts with slow growth,
// easy on rate-limited providers.
func RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:     2,
		InitialDelay:    2 * time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 1.5,
		Jitter:          true,
	}
}

// Service fetches conditions through the resilience manager.
type Service struct {
	manager     *resilience.Manager
	source      Source
	logger      log.Logger
	retryConfig retry.Config
}

// Option customizes a Service.
type Option func(*Service)

// WithRetryConfig overrides the default weather retry budget.
func WithRetryConfig(config retry.Config) Option {
	return func(s *Service) {
		s.retryConfig = config
	}
}

// NewService creates a Service. A nil logger is replaced with a no-op logger.
func NewService(manager *resilience.Manager, source Source, logger log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Service{
		manager:     manager,
		source:      source,
		logger:      logger,
		retryConfig: RetryConfig(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Current returns the latest conditions, retrying transient failures.
func (s *Service) Current(ctx context.Context) (Conditions, error) {
	result, err := s.manager.Retry(ctx, s.retryConfig, func(ctx context.Context) (any, error) {
		return s.source.Current(ctx)
	})
	if err != nil {
		s.logger.Log(ctx, log.LevelWarn, "weather update failed", log.Err(err))

		return Conditions{}, err
	}

	conditions, ok := result.(Conditions)
	if !ok {
		return Conditions{}, fmt.Errorf("weather: unexpected result %T", result)
	}

	return conditions, nil
}

// WalkScore rates conditions for dog walking on a 0-100 scale. Temperature
// extremes dominate the score; humidity and wind shave off the rest.
func WalkScore(c Conditions) int {
	score := 100

	switch {
	case c.TemperatureC >= 35 || c.TemperatureC <= -15:
		score -= 70
	case c.TemperatureC >= 30 || c.TemperatureC <= -10:
		score -= 45
	case c.TemperatureC >= 25 || c.TemperatureC <= -5:
		score -= 20
	}

	if c.Humidity >= 85 {
		score -= 15
	} else if c.Humidity >= 70 {
		score -= 5
	}

	switch {
	case c.WindKmh >= 60:
		score -= 25
	case c.WindKmh >= 40:
		score -= 10
	}

	if score < 0 {
		return 0
	}

	return score
}

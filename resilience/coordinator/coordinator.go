package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/log"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/retry"
	"github.com/google/uuid"
)

// ErrAuthentication marks a fetch rejected for bad credentials. It is never
// retried; the host reacts by starting a re-auth flow.
var ErrAuthentication = errors.New("coordinator: authentication failed")

// DogData is the per-dog payload assembled on each refresh cycle.
type DogData struct {
	DogID     string         `json:"dog_id"`
	Feeding   map[string]any `json:"feeding,omitempty"`
	Walk      map[string]any `json:"walk,omitempty"`
	GPS       map[string]any `json:"gps,omitempty"`
	Weather   map[string]any `json:"weather,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Fetcher retrieves the current payload for one dog from upstream.
type Fetcher interface {
	Fetch(ctx context.Context, dogID string) (DogData, error)
}

// BreakerName returns the circuit breaker name guarding one dog's refresh.
func BreakerName(dogID string) string {
	return "dog_data_" + dogID
}

// RetryConfig is the refresh retry budget: one quick second chance with
// jitter, capped well below the refresh interval.
func RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:     2,
		InitialDelay:    1 * time.Second,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Coordinator refreshes per-dog data through the resilience manager.
type Coordinator struct {
	manager     *resilience.Manager
	fetcher     Fetcher
	cache       *Cache
	logger      log.Logger
	retryConfig retry.Config
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithCache enables last-known-good fallback through the given cache.
func WithCache(cache *Cache) Option {
	return func(c *Coordinator) {
		c.cache = cache
	}
}

// WithRetryConfig overrides the default refresh retry budget.
func WithRetryConfig(config retry.Config) Option {
	return func(c *Coordinator) {
		c.retryConfig = config
	}
}

// New creates a Coordinator. A nil logger is replaced with a no-op logger.
func New(manager *resilience.Manager, fetcher Fetcher, logger log.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = log.NewNop()
	}

	c := &Coordinator{
		manager:     manager,
		fetcher:     fetcher,
		logger:      logger,
		retryConfig: RetryConfig(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Refresh fetches fresh data for one dog.
//
// Transient failures (including an open breaker and retry exhaustion) fall
// back to the cached payload when one exists; without a cache hit the
// original error is returned. Authentication failures always propagate so
// the host can re-authenticate.
func (c *Coordinator) Refresh(ctx context.Context, dogID string) (DogData, error) {
	logger := c.logger.With(
		log.String("dog_id", dogID),
		log.String("cycle_id", uuid.NewString()),
	)

	result, err := c.manager.ExecuteWithRetry(ctx, BreakerName(dogID), c.retryConfig,
		func(ctx context.Context) (any, error) {
			return c.fetcher.Fetch(ctx, dogID)
		},
		retry.WithClassifier(func(err error) bool {
			return errors.Is(err, ErrAuthentication)
		}),
	)

	if err == nil {
		data, ok := result.(DogData)
		if !ok {
			return DogData{}, fmt.Errorf("coordinator: unexpected fetch result %T", result)
		}

		c.storeLastKnownGood(ctx, logger, data)

		return data, nil
	}

	if errors.Is(err, ErrAuthentication) {
		logger.Log(ctx, log.LevelError, "authentication failed, re-auth required", log.Err(err))

		return DogData{}, err
	}

	if c.cache != nil {
		if cached, cacheErr := c.cache.Load(ctx, dogID); cacheErr == nil {
			logger.Log(ctx, log.LevelWarn, "refresh failed, serving cached dog data",
				log.Err(err),
				log.Any("cached_at", cached.FetchedAt),
			)

			return cached, nil
		}
	}

	return DogData{}, err
}

func (c *Coordinator) storeLastKnownGood(ctx context.Context, logger log.Logger, data DogData) {
	if c.cache == nil {
		return
	}

	if err := c.cache.Store(ctx, data); err != nil {
		// A cache write failure degrades fallback, not the refresh itself.
		logger.Log(ctx, log.LevelWarn, "failed to cache dog data", log.Err(err))
	}
}

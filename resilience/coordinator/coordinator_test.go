//go:build unit

package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/circuitbreaker"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/log"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/retry"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

// stubFetcher fails a configurable number of times before succeeding.
type stubFetcher struct {
	failures  int
	err       error
	calls     int
	succeedAs DogData
}

func (f *stubFetcher) Fetch(_ context.Context, dogID string) (DogData, error) {
	f.calls++
	if f.calls <= f.failures {
		return DogData{}, f.err
	}

	data := f.succeedAs
	data.DogID = dogID

	return data, nil
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:     2,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2.0,
	}
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client, time.Hour)
}

func TestCoordinator_RefreshSuccessPopulatesCache(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	fetcher := &stubFetcher{succeedAs: DogData{
		Feeding:   map[string]any{"last_meal": "08:00"},
		FetchedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}}

	coordinator := New(resilience.NewManager(log.NewNop()), fetcher, log.NewNop(),
		WithCache(cache), WithRetryConfig(fastRetry()))

	data, err := coordinator.Refresh(context.Background(), "max")
	require.NoError(t, err)
	assert.Equal(t, "max", data.DogID)
	assert.Equal(t, 1, fetcher.calls)

	cached, err := cache.Load(context.Background(), "max")
	require.NoError(t, err)
	assert.Equal(t, data, cached)
}

func TestCoordinator_TransientFailureServesCachedData(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	lastKnownGood := DogData{
		DogID:     "max",
		Walk:      map[string]any{"in_progress": true},
		FetchedAt: time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC),
	}
	require.NoError(t, cache.Store(context.Background(), lastKnownGood))

	fetcher := &stubFetcher{failures: 10, err: errUpstream}

	coordinator := New(resilience.NewManager(log.NewNop()), fetcher, log.NewNop(),
		WithCache(cache), WithRetryConfig(fastRetry()))

	data, err := coordinator.Refresh(context.Background(), "max")
	require.NoError(t, err, "transient failures are absorbed by the cache fallback")
	assert.Equal(t, lastKnownGood, data)
	assert.Equal(t, 2, fetcher.calls, "retry budget spent before falling back")
}

func TestCoordinator_TransientFailureWithoutCacheReturnsError(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{failures: 10, err: errUpstream}

	coordinator := New(resilience.NewManager(log.NewNop()), fetcher, log.NewNop(),
		WithRetryConfig(fastRetry()))

	_, err := coordinator.Refresh(context.Background(), "max")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, errUpstream)
}

func TestCoordinator_AuthFailurePropagatesDespiteCache(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	require.NoError(t, cache.Store(context.Background(), DogData{DogID: "max"}))

	fetcher := &stubFetcher{failures: 10, err: ErrAuthentication}

	coordinator := New(resilience.NewManager(log.NewNop()), fetcher, log.NewNop(),
		WithCache(cache), WithRetryConfig(fastRetry()))

	_, err := coordinator.Refresh(context.Background(), "max")
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 1, fetcher.calls, "authentication failures are never retried")
}

func TestCoordinator_OpenBreakerServesCachedData(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	lastKnownGood := DogData{DogID: "max", GPS: map[string]any{"lat": 52.52}}
	require.NoError(t, cache.Store(context.Background(), lastKnownGood))

	manager := resilience.NewManager(log.NewNop())
	require.NoError(t, manager.Configure(BreakerName("max"), circuitbreaker.Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
		HalfOpenMaxCalls: 1,
	}))

	fetcher := &stubFetcher{failures: 10, err: errUpstream}
	coordinator := New(manager, fetcher, log.NewNop(),
		WithCache(cache), WithRetryConfig(fastRetry()))

	// First refresh fails and trips the breaker; cache serves the result.
	_, err := coordinator.Refresh(context.Background(), "max")
	require.NoError(t, err)
	require.Equal(t, circuitbreaker.StateOpen, manager.State(BreakerName("max")))

	callsBefore := fetcher.calls

	data, err := coordinator.Refresh(context.Background(), "max")
	require.NoError(t, err)
	assert.Equal(t, lastKnownGood, data)
	assert.Equal(t, callsBefore, fetcher.calls, "open breaker must not reach the fetcher")
}

func TestCoordinator_PerDogBreakersAreIndependent(t *testing.T) {
	t.Parallel()

	manager := resilience.NewManager(log.NewNop())
	require.NoError(t, manager.Configure(BreakerName("max"), circuitbreaker.Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
		HalfOpenMaxCalls: 1,
	}))

	failing := &stubFetcher{failures: 10, err: errUpstream}
	failingCoordinator := New(manager, failing, log.NewNop(), WithRetryConfig(fastRetry()))

	_, err := failingCoordinator.Refresh(context.Background(), "max")
	require.Error(t, err)
	require.Equal(t, circuitbreaker.StateOpen, manager.State(BreakerName("max")))

	healthy := &stubFetcher{}
	healthyCoordinator := New(manager, healthy, log.NewNop(), WithRetryConfig(fastRetry()))

	data, err := healthyCoordinator.Refresh(context.Background(), "buddy")
	require.NoError(t, err)
	assert.Equal(t, "buddy", data.DogID)
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)

	data := DogData{
		DogID:     "luna",
		Feeding:   map[string]any{"portions": float64(3)},
		Weather:   map[string]any{"condition": "rainy"},
		FetchedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, cache.Store(context.Background(), data))

	loaded, err := cache.Load(context.Background(), "luna")
	require.NoError(t, err)
	assert.Equal(t, data, loaded)
}

func TestCache_MissReturnsErrCacheMiss(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)

	_, err := cache.Load(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_EntriesExpire(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCache(client, time.Minute)

	require.NoError(t, cache.Store(context.Background(), DogData{DogID: "max"}))

	mr.FastForward(2 * time.Minute)

	_, err := cache.Load(context.Background(), "max")
	require.ErrorIs(t, err, ErrCacheMiss)
}

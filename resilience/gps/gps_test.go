//go:build unit

package gps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/log"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNoFix = errors.New("no satellite fix")

type stubSource struct {
	failures int
	calls    int
	point    Point
}

func (s *stubSource) Locate(_ context.Context, _ string) (Point, error) {
	s.calls++
	if s.calls <= s.failures {
		return Point{}, errNoFix
	}

	return s.point, nil
}

func fastRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2.0,
	}
}

func TestTracker_LocateSuccess(t *testing.T) {
	t.Parallel()

	want := Point{Latitude: 52.52, Longitude: 13.405, AccuracyM: 4, RecordedAt: time.Now()}
	source := &stubSource{point: want}
	tracker := NewTracker(resilience.NewManager(log.NewNop()), source, log.NewNop())

	got, err := tracker.Locate(context.Background(), "max")

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, source.calls)
}

func TestTracker_RetriesTransientFixFailure(t *testing.T) {
	t.Parallel()

	want := Point{Latitude: 48.137, Longitude: 11.575, AccuracyM: 8}
	source := &stubSource{failures: 2, point: want}
	tracker := NewTracker(resilience.NewManager(log.NewNop()), source, log.NewNop(),
		WithRetryConfig(fastRetryConfig()))

	got, err := tracker.Locate(context.Background(), "bella")

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 3, source.calls)
}

func TestTracker_ExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	source := &stubSource{failures: 10}
	tracker := NewTracker(resilience.NewManager(log.NewNop()), source, log.NewNop(),
		WithRetryConfig(fastRetryConfig()))

	_, err := tracker.Locate(context.Background(), "max")

	require.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, errNoFix)
	assert.Equal(t, 3, source.calls)
}

func TestTracker_DefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialDelay)
}

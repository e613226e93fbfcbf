//go:build unit

package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		initial  time.Duration
		maxDelay time.Duration
		base     float64
		attempt  int
		expected time.Duration
	}{
		{
			name:     "attempt 1 is immediate",
			initial:  time.Second,
			maxDelay: 5 * time.Second,
			base:     2.0,
			attempt:  1,
			expected: 0,
		},
		{
			name:     "attempt 2 uses initial delay",
			initial:  time.Second,
			maxDelay: 5 * time.Second,
			base:     2.0,
			attempt:  2,
			expected: time.Second,
		},
		{
			name:     "attempt 3 doubles",
			initial:  time.Second,
			maxDelay: 5 * time.Second,
			base:     2.0,
			attempt:  3,
			expected: 2 * time.Second,
		},
		{
			name:     "attempt 4 quadruples",
			initial:  time.Second,
			maxDelay: 5 * time.Second,
			base:     2.0,
			attempt:  4,
			expected: 4 * time.Second,
		},
		{
			name:     "growth is capped at max delay",
			initial:  time.Second,
			maxDelay: 5 * time.Second,
			base:     2.0,
			attempt:  5,
			expected: 5 * time.Second,
		},
		{
			name:     "fractional base grows slowly",
			initial:  2 * time.Second,
			maxDelay: 30 * time.Second,
			base:     1.5,
			attempt:  3,
			expected: 3 * time.Second,
		},
		{
			name:     "attempt 0 is immediate",
			initial:  time.Second,
			maxDelay: 5 * time.Second,
			base:     2.0,
			attempt:  0,
			expected: 0,
		},
		{
			name:     "zero initial delay is immediate",
			initial:  0,
			maxDelay: 5 * time.Second,
			base:     2.0,
			attempt:  3,
			expected: 0,
		},
		{
			name:     "base of 1 stays at initial",
			initial:  time.Second,
			maxDelay: 5 * time.Second,
			base:     1.0,
			attempt:  10,
			expected: time.Second,
		},
		{
			name:     "max below initial clamps to initial",
			initial:  2 * time.Second,
			maxDelay: time.Second,
			base:     2.0,
			attempt:  2,
			expected: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := Delay(tt.initial, tt.maxDelay, tt.base, tt.attempt)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDelay_OverflowClampsToMax(t *testing.T) {
	t.Parallel()

	result := Delay(time.Hour, 24*time.Hour, 10.0, 500)
	assert.Equal(t, 24*time.Hour, result)
}

func TestJitter(t *testing.T) {
	t.Parallel()

	const fraction = 0.25

	delay := 1 * time.Second
	low := time.Duration(float64(delay) * (1 - fraction))
	high := time.Duration(float64(delay) * (1 + fraction))

	for range 200 {
		result := Jitter(delay, fraction)
		assert.GreaterOrEqual(t, result, low)
		assert.LessOrEqual(t, result, high)
	}
}

func TestJitter_EdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		delay    time.Duration
		fraction float64
		expected time.Duration
	}{
		{"zero delay passes through", 0, 0.25, 0},
		{"negative delay passes through", -time.Second, 0.25, -time.Second},
		{"zero fraction passes through", time.Second, 0, time.Second},
		{"negative fraction passes through", time.Second, -0.5, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, Jitter(tt.delay, tt.fraction))
		})
	}
}

func TestJitter_NeverNegative(t *testing.T) {
	t.Parallel()

	for range 200 {
		result := Jitter(time.Nanosecond, 1.0)
		assert.GreaterOrEqual(t, result, time.Duration(0))
	}
}

func TestJitter_Distribution(t *testing.T) {
	t.Parallel()

	const iterations = 1000

	delay := 100 * time.Millisecond

	var sum time.Duration

	for range iterations {
		sum += Jitter(delay, 0.25)
	}

	avg := sum / iterations
	tolerance := delay / 5

	assert.InDelta(t, int64(delay), int64(avg), float64(tolerance),
		"average jittered delay should hover around the base delay (got %v)", avg)
}

func TestSleepWithContext(t *testing.T) {
	t.Parallel()

	t.Run("completes sleep successfully", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		start := time.Now()
		err := SleepWithContext(ctx, 50*time.Millisecond)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := SleepWithContext(ctx, 1*time.Second)
		elapsed := time.Since(start)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, elapsed, 100*time.Millisecond)
	})

	t.Run("respects context deadline", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := SleepWithContext(ctx, 1*time.Second)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("zero duration returns immediately", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		err := SleepWithContext(context.Background(), 0)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Less(t, elapsed, 10*time.Millisecond)
	})

	t.Run("already cancelled context returns immediately", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := SleepWithContext(ctx, 1*time.Second)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCryptoFallbackRand(t *testing.T) {
	t.Parallel()

	const maxValue = 1000

	for range 100 {
		result := cryptoFallbackRand(maxValue)
		assert.GreaterOrEqual(t, result, int64(0))
		assert.Less(t, result, int64(maxValue))
	}
}

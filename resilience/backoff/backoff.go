package backoff

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	mrand "math/rand/v2"
	"time"
)

// Delay computes the wait before the given 1-based attempt number.
//
// The first attempt is immediate. For attempt k >= 2 the delay grows as
// initial * base^(k-2), capped at maxDelay. A base <= 1 grows linearly at
// the initial delay. Results never overflow: values beyond the cap (or
// beyond int64 nanoseconds) clamp to maxDelay.
func Delay(initial, maxDelay time.Duration, base float64, attempt int) time.Duration {
	if attempt <= 1 || initial <= 0 {
		return 0
	}

	if maxDelay < initial {
		maxDelay = initial
	}

	if base <= 1 {
		return initial
	}

	scaled := float64(initial) * math.Pow(base, float64(attempt-2))
	if scaled >= float64(maxDelay) || math.IsInf(scaled, 1) {
		return maxDelay
	}

	return time.Duration(scaled)
}

// Jitter perturbs delay by a uniform random factor in [-fraction, +fraction].
// The result is never negative. A zero or negative delay or fraction returns
// the delay unchanged.
func Jitter(delay time.Duration, fraction float64) time.Duration {
	if delay <= 0 || fraction <= 0 {
		return delay
	}

	if fraction > 1 {
		fraction = 1
	}

	span := int64(2 * fraction * float64(delay))
	if span <= 0 {
		return delay
	}

	jittered := int64(delay) - span/2 + randInt64(span)
	if jittered < 0 {
		return 0
	}

	return time.Duration(jittered)
}

// randInt64 returns a uniform random value in [0, maxValue). It uses
// crypto/rand, falling back to a math/rand PRNG if the entropy source fails.
func randInt64(maxValue int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(maxValue))
	if err != nil {
		return cryptoFallbackRand(maxValue)
	}

	return n.Int64()
}

// fallbackDivisor is used when crypto/rand fails completely.
const fallbackDivisor = 2

// cryptoFallbackRand seeds a math/rand PRNG from crypto/rand raw bytes; if
// even that fails it returns the deterministic midpoint so jitter never
// stalls under entropy exhaustion.
func cryptoFallbackRand(maxValue int64) int64 {
	var seed [8]byte

	_, err := rand.Read(seed[:])
	if err != nil {
		return maxValue / fallbackDivisor
	}

	rng := mrand.New(
		mrand.NewPCG(binary.LittleEndian.Uint64(seed[:]), 0),
	) // #nosec G404 -- Fallback when crypto/rand fails

	return rng.Int64N(maxValue)
}

// SleepWithContext sleeps for the specified duration but respects context
// cancellation. Returns nil if the sleep completes, or an error if the
// context is cancelled. Returns immediately (nil) for zero or negative
// durations.
func SleepWithContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}

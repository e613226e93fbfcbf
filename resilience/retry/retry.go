package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/backoff"
)

// jitterFraction bounds the random perturbation applied to computed delays.
const jitterFraction = 0.25

var (
	// ErrInvalidConfig indicates the retry configuration failed validation.
	ErrInvalidConfig = errors.New("retry: invalid config")
	// ErrExhausted matches retry-exhausted errors via errors.Is.
	ErrExhausted = errors.New("retry: attempts exhausted")
)

// Operation is a single protected call attempt.
type Operation func(ctx context.Context) (any, error)

// Classifier reports whether an error is permanent and must not be retried.
type Classifier func(error) bool

// Config controls the attempt budget and backoff curve.
//
// The first attempt runs immediately; the delay before attempt k >= 2 is
// min(MaxDelay, InitialDelay * ExponentialBase^(k-2)), optionally perturbed
// by a uniform factor in [-25%, +25%] when Jitter is set.
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// DefaultConfig provides balanced retry settings for most call sites.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidConfig, c.MaxAttempts)
	}

	if c.InitialDelay < 0 {
		return fmt.Errorf("%w: initial delay must be >= 0, got %v", ErrInvalidConfig, c.InitialDelay)
	}

	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("%w: max delay %v is below initial delay %v", ErrInvalidConfig, c.MaxDelay, c.InitialDelay)
	}

	if c.ExponentialBase <= 1 {
		return fmt.Errorf("%w: exponential base must be > 1, got %g", ErrInvalidConfig, c.ExponentialBase)
	}

	return nil
}

// ExhaustedError is returned after the final attempt fails with a transient
// error. It wraps the last underlying error and matches ErrExhausted.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: %d attempts exhausted: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is matches the ErrExhausted sentinel so callers can branch with errors.Is.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// permanentError tags an error as non-retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as a permanent failure that must never be retried.
// Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the Permanent marker.
func IsPermanent(err error) bool {
	var pe *permanentError

	return errors.As(err, &pe)
}

// Option customizes a single Do invocation.
type Option func(*options)

type options struct {
	classifier Classifier
}

// WithClassifier supplies the permanent-failure predicate for this call.
// Errors carrying the Permanent marker are treated as permanent regardless
// of the classifier's verdict.
func WithClassifier(classifier Classifier) Option {
	return func(o *options) {
		o.classifier = classifier
	}
}

// Do runs op up to cfg.MaxAttempts times and returns the first successful
// result.
//
// Permanent errors propagate immediately with the remaining budget unused.
// Context cancellation during a backoff wait propagates without a further
// attempt. When every attempt fails with a transient error, Do returns an
// *ExhaustedError wrapping the last one.
func Do(ctx context.Context, cfg Config, op Operation, opts ...Option) (any, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoff.Delay(cfg.InitialDelay, cfg.MaxDelay, cfg.ExponentialBase, attempt)
			if cfg.Jitter {
				delay = backoff.Jitter(delay, jitterFraction)
			}

			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				return nil, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if IsPermanent(err) || (o.classifier != nil && o.classifier(err)) {
			return nil, err
		}

		lastErr = err
	}

	return nil, &ExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

package metrics

import (
	"context"
	"fmt"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/circuitbreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels the final result of a protected call.
type Outcome string

const (
	// OutcomeSuccess marks a call that returned a result.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure marks a call whose final attempt failed.
	OutcomeFailure Outcome = "failure"
	// OutcomeRejected marks a call denied by an open breaker.
	OutcomeRejected Outcome = "rejected"
	// OutcomeCancelled marks a call abandoned by context cancellation.
	OutcomeCancelled Outcome = "cancelled"
)

// Recorder holds the instruments for breaker and call telemetry.
type Recorder struct {
	transitions metric.Int64Counter
	calls       metric.Int64Counter
	attempts    metric.Int64Histogram
}

// New creates a Recorder on the given meter.
func New(meter metric.Meter) (*Recorder, error) {
	transitions, err := meter.Int64Counter(
		"pawcontrol.resilience.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	calls, err := meter.Int64Counter(
		"pawcontrol.resilience.calls",
		metric.WithDescription("Protected calls by final outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating calls counter: %w", err)
	}

	attempts, err := meter.Int64Histogram(
		"pawcontrol.resilience.call.attempts",
		metric.WithDescription("Attempts consumed per protected call"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attempts histogram: %w", err)
	}

	return &Recorder{
		transitions: transitions,
		calls:       calls,
		attempts:    attempts,
	}, nil
}

// RecordStateChange counts a breaker state transition.
func (r *Recorder) RecordStateChange(ctx context.Context, name string, from, to circuitbreaker.State) {
	if r == nil {
		return
	}

	r.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

// RecordCall counts a protected call by its final outcome.
func (r *Recorder) RecordCall(ctx context.Context, breaker string, outcome Outcome) {
	if r == nil {
		return
	}

	r.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("outcome", string(outcome)),
	))
}

// RecordAttempts records how many attempts a protected call consumed.
func (r *Recorder) RecordAttempts(ctx context.Context, breaker string, attempts int) {
	if r == nil {
		return
	}

	r.attempts.Record(ctx, int64(attempts), metric.WithAttributes(
		attribute.String("breaker", breaker),
	))
}

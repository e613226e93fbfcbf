// Package backoff provides retry delay computation with exponential growth,
// a cap, and bounded jitter.
//
// Use Delay to compute the wait before a retry attempt and SleepWithContext
// to wait while respecting cancellation and deadlines.
package backoff

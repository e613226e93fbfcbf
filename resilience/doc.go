// Package resilience coordinates circuit breakers and retry execution for
// the PawControl integration's outbound calls.
//
// A single Manager is created at startup and passed to every component that
// needs protection: per-dog data refreshes, notification channels, GPS and
// weather fetches. Callers hand the Manager an operation and a breaker name;
// the Manager gates the call through the named breaker, optionally drives it
// through retry with exponential backoff, and reports the outcome back to
// the breaker so unhealthy resources fail fast instead of cascading.
package resilience

// Package coordinator drives the per-dog data refresh cycle.
//
// Each dog refreshes under its own circuit breaker (dog_data_<id>) with a
// short retry budget. Transient failures fall back to the last known good
// payload cached in Redis; authentication failures bypass retry and surface
// to the host so it can start a re-auth flow.
package coordinator

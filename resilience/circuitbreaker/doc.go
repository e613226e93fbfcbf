// Package circuitbreaker implements a per-resource CLOSED/OPEN/HALF_OPEN
// gate that stops calls to a resource once it is judged unhealthy.
//
// A breaker opens after a configured number of consecutive failures, fails
// fast while open, and after a dwell period admits a bounded number of trial
// calls. Enough consecutive trial successes close it again; a single trial
// failure reopens it. The OPEN to HALF_OPEN transition is evaluated lazily
// when a call asks for admission; no background timer is involved.
package circuitbreaker

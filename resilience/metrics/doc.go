// Package metrics records resilience telemetry through OpenTelemetry.
//
// A Recorder is optional everywhere it is accepted; a nil Recorder drops all
// measurements so instrumented code needs no nil checks at call sites.
package metrics

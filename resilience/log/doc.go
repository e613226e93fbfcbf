// Package log defines the structured logging interface and typed log fields
// used across the resilience library.
//
// Adapters (such as the zap package) implement Logger so library code can log
// consistently regardless of the backend the host application wires in.
package log

// Package zap provides a go.uber.org/zap backed implementation of the
// library's log.Logger interface.
//
// When the context carries an active OpenTelemetry span, trace_id and span_id
// fields are appended automatically so log lines correlate with traces.
package zap

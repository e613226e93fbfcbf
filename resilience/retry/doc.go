// Package retry executes operations with exponential backoff between
// attempts.
//
// Failures are retried until the attempt budget is exhausted, except errors
// classified as permanent (bad credentials, rejected auth), which propagate
// on first occurrence. Classification is supplied by the caller, either by
// wrapping errors with Permanent or by providing a classifier option.
package retry

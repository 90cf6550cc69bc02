// Package errors provides standardized error handling patterns for homestream.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// This classification lets callers make informed decisions about retries and
// failure handling without matching on error strings. In discovery terms:
// a failed subscribe is transient (the broker may come back), a malformed
// configuration payload is invalid (dropping it is correct, retrying is not),
// and starting an already-armed session is fatal (a programming error).
//
// The classification integrates with Go's standard error handling patterns,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	if kind == "" {
//	    return errors.ErrUnsupportedComponent
//	}
//
// Wrap errors with context for debugging:
//
//	if err := conn.Subscribe(topic, sink); err != nil {
//	    return errors.WrapTransient(err, "Session", "Start", "subscribe")
//	}
//
// Check classification for retry logic:
//
//	if errors.IsTransient(err) {
//	    cfg := errors.DefaultRetryConfig()
//	    if cfg.ShouldRetry(err, attempt) {
//	        time.Sleep(cfg.BackoffDelay(attempt))
//	        // retry operation
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The plain Wrap() function adds context without forcing a classification.
//
// # Standard Error Variables
//
// Pre-defined error variables for common conditions, organized by category:
//
//   - Session lifecycle: ErrAlreadyStarted, ErrSessionCompleted
//   - Connection: ErrNotConnected, ErrConnectionLost, ErrConnectionTimeout, ErrSubscribeFailed
//   - Discovery data: ErrInvalidTopic, ErrUnsupportedComponent, ErrInvalidPayload
//   - Configuration: ErrInvalidConfig, ErrMissingConfig
//
// Use these variables instead of creating custom error messages so callers
// can test with errors.Is().
package errors

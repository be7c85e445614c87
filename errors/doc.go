// Package errors provides standardized error handling for the actorcore
// protocol engine.
//
// # Overview
//
// Two layers of error identity live here:
//
//   - Classification: every error is Transient (temporary, retryable),
//     Invalid (bad input, do not retry), or Fatal (unrecoverable). The
//     hub client uses classification to drive reconnect/backoff logic.
//   - Protocol failures: the sentinels ErrParse, ErrValidation,
//     ErrValueMismatch, ErrNotConnected, ErrWriteFailed, ErrTimeout and
//     ErrAborted name the failure kinds of the command/reply protocol.
//     Protocol failures are resolved locally into synthesized replies
//     and delivered through the normal callback path; they are never
//     raised across the dispatcher boundary.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Dispatcher", "ExecuteCmd", "write line")
//	errors.WrapInvalid(err, "ReplyParser", "Parse", "header")
//	errors.WrapFatal(err, "Registry", "Load", "dictionary source")
//
// All error types support errors.Is, errors.As and wrapping chains.
package errors

package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources. It is surfaced
	// directly to callers and must never be retried.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable marks transient external-service failures. Callers retry
	// these subject to the job backoff policy.
	ErrUnavailable = errors.New("unavailable")
	// ErrConflict marks writes rejected by a uniqueness constraint that is not
	// handled as an upsert.
	ErrConflict = errors.New("conflict")
)

// Is re-exports errors.Is so call sites only import this package.
func Is(err, target error) bool { return errors.Is(err, target) }

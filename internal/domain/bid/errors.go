package bid

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no bid exists for the requested id.
var ErrNotFound = errors.New("bid not found")

// ValidationError marks a malformed payload: non-positive amounts or delivery
// times, or an oversized message. Recoverable by correcting the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError marks a stale version or an action that is illegal for the
// current state or actor. The caller must refetch the authoritative bid
// before retrying.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

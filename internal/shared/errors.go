package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized indicates the caller has no valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates a valid session with insufficient privilege,
	// or a system-role protection rule was triggered.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the target role/permission/assignment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEvaluatorUnavailable indicates the backing store was unreachable
	// during an authorization read. Callers decide fail-open/fail-closed policy.
	ErrEvaluatorUnavailable = errors.New("evaluator unavailable")
	// ErrStoreFailure indicates the backing store was unreachable during a write.
	ErrStoreFailure = errors.New("store failure")
	// ErrValidation marks malformed input payloads.
	ErrValidation = errors.New("validation failed")
)

// ConflictError reports a uniqueness or referential conflict. Blocking carries
// the number of assignments preventing a role deletion, zero for name clashes.
type ConflictError struct {
	Reason   string
	Blocking int
}

func (e *ConflictError) Error() string {
	if e.Blocking > 0 {
		return fmt.Sprintf("conflict: %s (%d blocking assignments)", e.Reason, e.Blocking)
	}
	return "conflict: " + e.Reason
}

// Conflict builds a ConflictError without a blocking count.
func Conflict(reason string) *ConflictError {
	return &ConflictError{Reason: reason}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity does not exist. Lookups that
	// resolve an id against multiple tables also return it when the id
	// matches more than one table, so an ambiguous id behaves like a
	// missing one.
	ErrNotFound = errors.New("entity not found")

	// ErrReferenceNotFound is returned when a write references an entity
	// that does not exist (unknown group on a role insert, unknown state
	// machine on a state insert).
	ErrReferenceNotFound = errors.New("referenced entity not found")

	// ErrPermissionDenied is returned when the principal holds no role
	// satisfying the check. Missing principals and unresolvable objects
	// deny rather than erroring.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStaleWrite is returned when an update carries a lastchange token
	// that no longer matches the row. The caller should re-read and retry.
	ErrStaleWrite = errors.New("stale write: lastchange token mismatch")
)

// PolicyViolationError reports an actor role attempting to change a field it
// is not allowed to touch.
type PolicyViolationError struct {
	Role  string
	Field string
}

// Error implements the error interface.
func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("role %q is not allowed to change %q", e.Role, e.Field)
}

// IsPolicyViolation reports whether err is a PolicyViolationError and returns
// it if so.
func IsPolicyViolation(err error) (*PolicyViolationError, bool) {
	var pv *PolicyViolationError
	if errors.As(err, &pv) {
		return pv, true
	}
	return nil, false
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrWriterClosed is returned by a writer once Commit has run. Staging or
	// committing again on the same instance is a programmer error and is never
	// retried.
	ErrWriterClosed = errors.New("writer already committed")

	// ErrNotFound is returned by registry lookups for names with no stored
	// object.
	ErrNotFound = errors.New("not found")
)

// ConflictError reports that a change collided with a concurrent writer: the
// provider's state moved between read and write. Conflicts are resolved by
// re-reading and rebuilding the change, never by blind retry of the same
// request.
type ConflictError struct {
	Zone   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stale zone state in %s: %s", e.Zone, e.Reason)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

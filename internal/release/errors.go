package release

import (
	"errors"
	"fmt"
)

// ErrDuplicateVersion is returned by Store.Insert when a record with the
// same version already exists. Duplicate crawls hit this routinely; callers
// treat it as "already ingested", not corruption.
var ErrDuplicateVersion = errors.New("release version already exists")

// PreconditionError indicates an operation was invoked on a record missing a
// required field. This is an ordering bug in the caller (e.g. pushing before
// pulling), not a remote failure.
type PreconditionError struct {
	Version int
	Field   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("release v%d is missing %s", e.Version, e.Field)
}

// ValidationError indicates malformed input to the classifier.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

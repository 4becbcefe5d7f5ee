package mapping

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks argument-level misuse caught at build time, such
// as conflicting dense-vector knn parameters. Test with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// Error reports a structurally invalid entity configuration. It is always
// surfaced synchronously to the caller; a build either fully succeeds or
// returns an error with no partial output.
type Error struct {
	Entity   string
	Property string
	Reason   string
}

func (e *Error) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("mapping error in entity %q: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("mapping error in entity %q, property %q: %s", e.Entity, e.Property, e.Reason)
}

func newError(entity, property, reason string) *Error {
	return &Error{Entity: entity, Property: property, Reason: reason}
}

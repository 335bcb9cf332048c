package promptforge

import (
	"fmt"
	"strings"
)

// MalformedRequestError is the fatal error for requests missing required
// fields. It is surfaced before any pipeline stage runs.
type MalformedRequestError struct {
	Err error
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("MalformedRequestError: %v", e.Err)
}

func (e *MalformedRequestError) Unwrap() error {
	return e.Err
}

// ConstraintViolationError is surfaced only in strict mode, and only after
// the single self-repair attempt also failed.
type ConstraintViolationError struct {
	Violations []string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("ConstraintViolationError: %s", strings.Join(e.Violations, "; "))
}

package retrieval

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes the members of the retrieval error family.
type ErrorKind int

const (
	// KindEmptyPool means the underlying example pool has no entries at all.
	KindEmptyPool ErrorKind = iota
	// KindPoolQuality means too few valid candidates survived filtering.
	KindPoolQuality
	// KindVectorIntegrity means similarity produced a non-finite value.
	KindVectorIntegrity
)

func (k ErrorKind) String() string {
	switch k {
	case KindEmptyPool:
		return "EmptyPoolError"
	case KindPoolQuality:
		return "PoolQualityError"
	case KindVectorIntegrity:
		return "VectorIntegrityError"
	default:
		return "RetrievalError"
	}
}

// Error is the retrieval error family. Callers catch broadly with
// errors.As(*Error) or narrowly with IsKind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed retrieval error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err belongs to the retrieval family with the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

// IsRetrievalError reports whether err belongs to the retrieval family at all.
func IsRetrievalError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

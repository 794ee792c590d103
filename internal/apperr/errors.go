package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping. Validation, NotFound and
// Conflict are terminal and side-effect free; StorageFailure and
// PersistenceFailure may have triggered compensating cleanup before
// surfacing.
type Kind int

const (
	Validation Kind = iota
	NotFound
	Conflict
	Unauthorized
	Forbidden
	ThumbnailFailed
	StorageFailure
	PersistenceFailure
	Internal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case ThumbnailFailed:
		return "thumbnail_failed"
	case StorageFailure:
		return "storage_failure"
	case PersistenceFailure:
		return "persistence_failure"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two *Error values by kind, so callers can compare
// against a bare New(kind, ...) sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err if it is (or wraps) an *Error, Internal
// otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

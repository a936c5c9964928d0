// Package errs defines the expected failure kinds of survey and form
// operations. Each carries enough information for a caller to pick a
// client-facing status and message without re-deriving the reason.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindPreconditionFailed
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	// Code is a dotted identifier of the failing check, used for logging.
	Code string
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) *Error {
	return newf(KindValidation, code, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return newf(KindConflict, code, format, args...)
}

func PreconditionFailed(code, format string, args ...any) *Error {
	return newf(KindPreconditionFailed, code, format, args...)
}

func NotFound(code, format string, args ...any) *Error {
	return newf(KindNotFound, code, format, args...)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// KindOf reports the kind of err, KindInternal for anything that is not an
// *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Sentinels usable with errors.Is. Any *Error of the same kind matches.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "operation not allowed"}
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "resource already exists"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can test errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message, nil)
}

func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

func Validationf(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

func Conflict(message string, err error) *Error {
	return New(KindConflict, message, err)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message, nil)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

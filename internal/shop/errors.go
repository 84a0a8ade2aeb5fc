package shop

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidSignature  Kind = "invalid_signature"
	KindProvider          Kind = "provider"
	KindConflict          Kind = "conflict"
)

// Error membawa kind supaya layer HTTP bisa mapping ke status code
// tanpa bocorin detail internal.
type Error struct {
	Kind      Kind
	Msg       string
	Field     string // utk validation: field yg salah
	ProductID string // utk insufficient stock / product not found
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func ValidationField(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// KindOf returns the kind of err, or "" when err is not a *shop.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// Package apperr defines structured, reason-coded errors shared by the
// services and the presentation layers.
package apperr

import "errors"

// Kind classifies a failure for presentation layers.
type Kind string

// Error kinds.
const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindConflict          Kind = "conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindUnauthorized      Kind = "unauthorized"
	KindValidation        Kind = "validation_error"
	KindInternal          Kind = "internal"
)

// Error is a user-facing failure with a stable machine-readable code.
// Sentinel values are compared by identity with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New creates a new Error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// Internal is reported for anything that is not an *Error.
var Internal = New(KindInternal, "internal_error", "internal error, please try again later")

// As returns the *Error carried by err, or Internal when there is none.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	return As(err).Kind
}

// IsInternal reports whether err would be presented as an internal error.
func IsInternal(err error) bool {
	return KindOf(err) == KindInternal
}

package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation so callers can act on the
// outcome deterministically instead of matching on strings.
type ErrorKind string

const (
	KindUnauthenticated  ErrorKind = "UNAUTHENTICATED"
	KindForbidden        ErrorKind = "FORBIDDEN"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindConflict         ErrorKind = "CONFLICT"
	KindValidation       ErrorKind = "VALIDATION_ERROR"
	KindTransport        ErrorKind = "TRANSPORT_ERROR"
	KindUnexpectedStatus ErrorKind = "UNEXPECTED_STATUS"
)

// Error is the portal's domain error. Exactly one is produced per
// failed backend operation; the zero-value fields are unused for kinds
// they do not apply to.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string // field-level detail, validation only
	Status  int               // raw HTTP status, unexpected-status only
	Body    string            // raw response body, unexpected-status only
	Timeout bool              // transport only: deadline vs. refusal
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewUnauthenticated signals a missing, expired, or rejected credential.
func NewUnauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// NewForbidden signals a valid session of insufficient role.
func NewForbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NewNotFound signals an absent resource.
func NewNotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

// NewConflict signals a state conflict reported by the backend.
func NewConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewValidation signals rejected input, optionally per field.
func NewValidation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// NewTransport wraps a connectivity failure. timeout distinguishes an
// exceeded deadline from a refused or dropped connection.
func NewTransport(err error, timeout bool) *Error {
	msg := "connection failed"
	if timeout {
		msg = "request timed out"
	}
	return &Error{Kind: KindTransport, Message: msg, Timeout: timeout, cause: err}
}

// NewUnexpectedStatus preserves the raw status and body for diagnostics
// when the backend answers outside its documented contract.
func NewUnexpectedStatus(status int, body string) *Error {
	return &Error{
		Kind:    KindUnexpectedStatus,
		Message: fmt.Sprintf("unexpected status %d", status),
		Status:  status,
		Body:    body,
	}
}

// KindOf returns the kind of err, or "" when err is not a domain Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a domain Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsTimeout reports whether err is a transport error caused by an
// exceeded deadline.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport && e.Timeout
}

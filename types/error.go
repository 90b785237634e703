package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies an invocation failure. The classification is decided
// once at the invoker boundary; the dispatcher only ever switches on the
// kind, never on transport details.
type ErrorKind string

// Recoverable kinds. The dispatcher absorbs these internally.
const (
	// KindQuotaExceeded means the called model tier has no remaining
	// capacity for this caller. Triggers fallback to the next model in
	// the chain.
	KindQuotaExceeded ErrorKind = "QUOTA_EXCEEDED"

	// KindTransient covers network failures, upstream 5xx responses and
	// per-attempt deadline expiry. Triggers a same-model retry.
	KindTransient ErrorKind = "TRANSIENT"
)

// Terminal kinds. Never retried; surfaced to the caller.
const (
	KindInvalidInput       ErrorKind = "INVALID_INPUT"
	KindAuthFailure        ErrorKind = "AUTH_FAILURE"
	KindFallbackExhausted  ErrorKind = "FALLBACK_EXHAUSTED"
	KindCancelled          ErrorKind = "CANCELLED"
	KindInternal           ErrorKind = "INTERNAL"
)

// Terminal reports whether the kind ends a task's lifecycle.
func (k ErrorKind) Terminal() bool {
	return k != KindQuotaExceeded && k != KindTransient
}

// Error is the structured error carried by failed tasks.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Model      string    `json:"model,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithModel records the model that produced the error.
func (e *Error) WithModel(model string) *Error {
	e.Model = model
	return e
}

// WithHTTPStatus sets the upstream HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// KindOf extracts the classification from an error. Context deadline expiry
// counts as transient (the per-attempt timeout path), context cancellation
// as cancelled. Anything unclassified is treated as terminal: an invoker
// that fails to classify must not be able to put the dispatcher into a
// retry loop.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindInternal
}

// AsError coerces err into a *Error, wrapping unclassified errors as
// internal failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindOf(err), Message: err.Error(), Cause: err}
}

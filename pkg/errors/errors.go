// Package errors defines the error taxonomy shared by every subsystem of
// the proxy: config, transport, protocol, application, not-found, and
// deadline failures. Components construct an *Error with the appropriate
// Kind so the router and control plane can translate failures into the
// correct JSON-RPC code or CLI exit status without re-deriving the
// classification from scratch.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure along a fixed taxonomy.
type Kind string

// The closed set of error kinds recognized by the proxy.
const (
	// KindConfig marks a malformed or unreadable compose document.
	KindConfig Kind = "config"
	// KindTransport marks an outbound I/O failure (connect, TLS, timeout).
	KindTransport Kind = "transport"
	// KindProtocol marks a backend response that is not valid JSON-RPC 2.0.
	KindProtocol Kind = "protocol"
	// KindApplication marks a well-formed JSON-RPC error from a backend.
	KindApplication Kind = "application"
	// KindNotFound marks a tool/resource/prompt absent from the index.
	KindNotFound Kind = "not_found"
	// KindDeadline marks a per-request or per-call deadline exceeded.
	KindDeadline Kind = "deadline"
)

// Error is the proxy's error envelope. It always carries a Kind so callers
// can branch on classification via errors.As without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an *Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, errors.New(KindTransport, "")) style checks work without
// matching on Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// defaulting to KindTransport for unclassified errors: an unclassified
// outbound failure gets the same one-retry treatment as a recognized
// transport error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// Package apperr defines the error kinds used across the service so that
// every failure reaching the HTTP boundary carries an explicit
// classification instead of an unstructured error string.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary handling.
type Kind int

const (
	// KindInternal is an unclassified internal failure.
	KindInternal Kind = iota
	// KindInvalidInput is a missing or malformed caller-supplied field.
	KindInvalidInput
	// KindPolicyViolation is an upload outside the size/duration policy.
	KindPolicyViolation
	// KindNotFound is a reference to an unknown video.
	KindNotFound
	// KindTranscode is a failure in the external media engine.
	KindTranscode
	// KindTokenExpired is a share token past its expiry instant.
	KindTokenExpired
	// KindTokenTampered is a share token whose signature does not verify.
	KindTokenTampered
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindPolicyViolation:
		return "policy_violation"
	case KindNotFound:
		return "not_found"
	case KindTranscode:
		return "transcode_fault"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenTampered:
		return "token_tampered"
	default:
		return "internal"
	}
}

// Error is an error with a Kind attached.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two *Errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// E builds a new classified error.
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide between user-visible
// and logged-only handling.
type Kind int

const (
	// KindAuthMissing no credential available, fatal for the session
	KindAuthMissing Kind = iota + 1
	// KindNetworkFailure a REST call was rejected or timed out, recoverable
	KindNetworkFailure
	// KindChannelDropped the realtime channel disconnected
	KindChannelDropped
	// KindMalformedRecord a chat/message record is missing required linkage
	KindMalformedRecord
)

func (k Kind) String() string {
	switch k {
	case KindAuthMissing:
		return "auth_missing"
	case KindNetworkFailure:
		return "network_failure"
	case KindChannelDropped:
		return "channel_dropped"
	case KindMalformedRecord:
		return "malformed_record"
	}
	return "unknown"
}

// Error carries a Kind, a message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implement error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap support errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Err
}

// New create an Error without a cause
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap create an Error wrapping a cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf returns the Kind carried by err, or zero when err is untyped.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the swap lifecycle.
type ErrorKind string

const (
	// KindConfiguration marks missing credentials or settings. Fatal, never retried.
	KindConfiguration ErrorKind = "configuration"
	// KindNetwork marks transport failures and non-2xx responses. Retryable at the call site.
	KindNetwork ErrorKind = "network"
	// KindProtocol marks malformed or incomplete relayer responses. Aborts the attempt.
	KindProtocol ErrorKind = "protocol"
	// KindSigning marks an unavailable key or a failed signature. Aborts the attempt.
	KindSigning ErrorKind = "signing"
)

// Error is the typed failure returned by every externally facing operation.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Body       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the caller may retry the failed operation.
func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindNetwork
}

// IsKind reports whether err carries a typed error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}

// IsRetryable reports whether err is a retryable typed error.
func IsRetryable(err error) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Retryable()
	}
	return false
}

// ConfigurationError builds a KindConfiguration error.
func ConfigurationError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NetworkError builds a KindNetwork error. statusCode is zero for transport failures.
func NetworkError(op string, statusCode int, body string, cause error) *Error {
	return &Error{Kind: KindNetwork, Op: op, StatusCode: statusCode, Body: body, Err: cause}
}

// ProtocolError builds a KindProtocol error.
func ProtocolError(op string, format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapProtocolError builds a KindProtocol error around a decoding cause.
func WrapProtocolError(op string, cause error, body string) *Error {
	return &Error{Kind: KindProtocol, Op: op, Body: body, Err: cause}
}

// SigningError builds a KindSigning error.
func SigningError(op string, cause error) *Error {
	return &Error{Kind: KindSigning, Op: op, Err: cause}
}

// Package aierr defines the classified error taxonomy shared by provider
// clients, the orchestrator, and the streaming session layer. Every failure
// that crosses a package boundary in this module is an *aierr.Error, so
// callers can branch on Code instead of string matching.
package aierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error classification.
type Code string

const (
	// CodeAuthFailed indicates a bad or missing provider credential. Fatal, never retried.
	CodeAuthFailed Code = "AUTH_FAILED"
	// CodeRateLimited indicates the provider rejected the call for rate or quota reasons.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeProviderUnavailable covers transport failures, 5xx responses and timeouts.
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	// CodeTruncatedOutput indicates structured model output was cut off before its
	// closing bracket, typically because of an output-length limit.
	CodeTruncatedOutput Code = "TRUNCATED_OUTPUT"
	// CodeMalformedOutput indicates complete but unparseable model output.
	CodeMalformedOutput Code = "MALFORMED_OUTPUT"
	// CodeSchemaValidation indicates parsed output that violates the required structure.
	CodeSchemaValidation Code = "SCHEMA_VALIDATION"
	// CodeSendWhileBusy indicates a second generation was requested on a
	// conversation that already has one in flight.
	CodeSendWhileBusy Code = "SEND_WHILE_BUSY"
)

// retryableCodes are the transient classifications eligible for a single
// fallback-provider attempt.
var retryableCodes = map[Code]bool{
	CodeRateLimited:         true,
	CodeProviderUnavailable: true,
}

// Error is the classified error carried across the module.
type Error struct {
	// Code is the machine-readable classification.
	Code Code
	// Provider names the backend the error originated from, when known.
	Provider string
	// Field names the offending field for schema validation failures.
	Field string
	// Message is a human-readable description.
	Message string
	// Retryable reports whether a fallback attempt is permitted.
	Retryable bool
	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Provider != "" {
		msg = fmt.Sprintf("%s (provider %s)", msg, e.Provider)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// WithProvider attaches the backend name and returns the receiver.
func (e *Error) WithProvider(name string) *Error {
	e.Provider = name
	return e
}

// WithCause attaches the underlying error and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// New creates a classified error with retryability derived from the code.
func New(code Code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: retryableCodes[code],
	}
}

// AuthFailed reports a rejected or missing credential for the named provider.
func AuthFailed(provider string) *Error {
	return New(CodeAuthFailed, "provider rejected the configured credential").WithProvider(provider)
}

// RateLimited reports a rate or quota rejection from the named provider.
func RateLimited(provider string) *Error {
	return New(CodeRateLimited, "provider is rate limited, retry later").WithProvider(provider)
}

// Unavailable reports a transport failure, 5xx response or timeout.
func Unavailable(provider string, cause error) *Error {
	return New(CodeProviderUnavailable, "provider unavailable").WithProvider(provider).WithCause(cause)
}

// Truncated reports structured output cut off before its closing bracket.
func Truncated(message string) *Error {
	return New(CodeTruncatedOutput, message)
}

// Malformed reports complete but unparseable model output.
func Malformed(message string) *Error {
	return New(CodeMalformedOutput, message)
}

// SchemaViolation reports parsed output missing or mistyping a required field.
func SchemaViolation(field, message string) *Error {
	e := New(CodeSchemaValidation, message)
	e.Field = field
	return e
}

// SendWhileBusy reports a second send on a conversation that is still streaming.
func SendWhileBusy(conversationID string) *Error {
	return New(CodeSendWhileBusy, fmt.Sprintf("conversation %s already has a generation in flight", conversationID))
}

// FromStatus classifies an HTTP status code from a provider API.
func FromStatus(provider string, status int, body string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return AuthFailed(provider)
	case status == http.StatusTooManyRequests:
		return RateLimited(provider)
	default:
		return Unavailable(provider, fmt.Errorf("status %d: %s", status, body))
	}
}

// CodeOf returns the classification of err, or the empty string when err is
// not a classified error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsRetryable reports whether err is a transient classified error eligible for
// a fallback attempt. Unclassified errors are never retryable.
func IsRetryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

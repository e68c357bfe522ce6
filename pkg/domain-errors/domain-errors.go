package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"

	// CodeProvider covers identity adapter failures: the provider is unknown,
	// unavailable, or rejected the request. Wraps provider detail.
	CodeProvider Code = "provider_error"

	// CodeBadgeConfig marks issuer-side badge misconfiguration (unknown
	// attribute method, malformed rules). Distinct from a user simply being
	// ineligible, which is a normal negative verdict and not an error.
	CodeBadgeConfig Code = "badge_misconfigured"

	// CodeMinting marks a failed ledger submission. The wrapped ledger error
	// carries the transaction hash when one was obtained before the failure.
	CodeMinting Code = "minting_failed"

	// CodeConfig marks service-level misconfiguration. Fatal to the affected
	// adapter only, never to the process.
	CodeConfig Code = "configuration_error"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	// Hint optionally suggests remediation to the end user.
	Hint string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// NewWithHint creates a domain error carrying a user-facing remediation hint.
func NewWithHint(code Code, msg, hint string) error {
	return &Error{Code: code, Message: msg, Hint: hint}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		// Preserve the original domain code, update message
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

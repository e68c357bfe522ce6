package providers

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes adapter failures so the session manager can decide
// consistently whether a failure is the user's, the provider's, or ours,
// without inspecting provider-specific messages.
type ErrorCategory string

const (
	// ErrorUnavailable means the adapter is missing credentials or config.
	ErrorUnavailable ErrorCategory = "unavailable"

	// ErrorRejected means the provider evaluated the user's claims and said no.
	ErrorRejected ErrorCategory = "rejected"

	// ErrorTimeout means the provider took too long to respond.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorOutage means the provider could not be reached or returned 5xx.
	ErrorOutage ErrorCategory = "outage"

	// ErrorBadPayload means the callback payload was malformed or incomplete.
	ErrorBadPayload ErrorCategory = "bad_payload"

	// ErrorInternal covers unexpected adapter-side failures.
	ErrorInternal ErrorCategory = "internal"
)

// AdapterError wraps an identity provider failure with its normalized
// category. Retryable is derived from the category: only transient provider
// trouble (timeout, outage) is worth another attempt with the same input.
type AdapterError struct {
	Category   ErrorCategory
	Provider   string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *AdapterError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("identity provider %s [%s]: %s: %v", e.Provider, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("identity provider %s [%s]: %s", e.Provider, e.Category, e.Message)
}

func (e *AdapterError) Unwrap() error {
	return e.Underlying
}

// NewAdapterError builds an AdapterError with retry classification derived
// from the category.
func NewAdapterError(category ErrorCategory, provider, message string, underlying error) *AdapterError {
	return &AdapterError{
		Category:   category,
		Provider:   provider,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorOutage,
	}
}

// IsRetryable reports whether err carries a retryable adapter failure.
func IsRetryable(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// CategoryOf extracts the category from an error, defaulting to internal.
func CategoryOf(err error) ErrorCategory {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ErrorInternal
}

package ledger

import (
	"errors"
	"fmt"
)

// FailureKind classifies ledger submission failures so the orchestrator can
// record and report them consistently without parsing node messages.
type FailureKind string

const (
	// FailureInsufficientFunds means the minting account cannot pay gas.
	FailureInsufficientFunds FailureKind = "insufficient_funds"

	// FailureReverted means the contract rejected the call.
	FailureReverted FailureKind = "reverted"

	// FailureNetwork means the ledger node could not be reached or answered 5xx.
	FailureNetwork FailureKind = "network_unreachable"

	// FailureNonceConflict means a concurrent submission consumed the nonce.
	FailureNonceConflict FailureKind = "nonce_conflict"

	// FailureUnknown covers responses this client cannot classify.
	FailureUnknown FailureKind = "unknown"
)

// KindFromCode maps a wire error code onto a FailureKind.
func KindFromCode(code string) FailureKind {
	switch FailureKind(code) {
	case FailureInsufficientFunds, FailureReverted, FailureNetwork, FailureNonceConflict:
		return FailureKind(code)
	default:
		return FailureUnknown
	}
}

// LedgerError wraps a ledger failure with its classification. Retryable is
// derived from the kind: a fresh submission can survive a network blip or a
// consumed nonce, while reverted calls and unfunded accounts fail the same
// way every time.
type LedgerError struct {
	Kind    FailureKind
	Message string
	// TxHash is set when a transaction was accepted before the failure.
	TxHash     string
	Underlying error
	Retryable  bool
}

func (e *LedgerError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("ledger [%s]: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("ledger [%s]: %s", e.Kind, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Underlying
}

// NewLedgerError builds a LedgerError with retry classification derived from
// the kind.
func NewLedgerError(kind FailureKind, message string, underlying error) *LedgerError {
	return &LedgerError{
		Kind:       kind,
		Message:    message,
		Underlying: underlying,
		Retryable:  kind == FailureNetwork || kind == FailureNonceConflict,
	}
}

// IsRetryable reports whether err carries a retryable ledger failure.
func IsRetryable(err error) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// KindOf extracts the classification from an error, defaulting to unknown.
func KindOf(err error) FailureKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return FailureUnknown
}

// TxHashOf extracts the transaction hash from a failed submission, if the
// ledger accepted one before failing.
func TxHashOf(err error) string {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.TxHash
	}
	return ""
}

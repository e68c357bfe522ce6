package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageFallsBackToCode(t *testing.T) {
	withMessage := &Error{Code: CodeNotFound, Message: "badge type not found"}
	require.Equal(t, "badge type not found", withMessage.Error())

	bare := &Error{Code: CodeNotFound}
	require.Equal(t, "not_found", bare.Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Code: CodeInternal, Message: "store unavailable", Err: cause}

	require.Equal(t, cause, errors.Unwrap(err))
	require.ErrorIs(t, err, cause)

	require.Nil(t, errors.Unwrap(&Error{Code: CodeNotFound, Message: "gone"}))
}

func TestIsMatchesByCodeAlone(t *testing.T) {
	require.ErrorIs(t,
		New(CodeConflict, "badge already held"),
		&Error{Code: CodeConflict, Message: "different message"})

	require.NotErrorIs(t, New(CodeNotFound, "x"), &Error{Code: CodeInternal})
	require.NotErrorIs(t, New(CodeNotFound, "x"), errors.New("not found"))

	// Matching crosses wrapping layers, fmt's included.
	inner := New(CodeProvider, "adapter timed out")
	outer := fmt.Errorf("handling callback: %w", inner)
	require.ErrorIs(t, outer, &Error{Code: CodeProvider})
}

func TestNewCarriesCodeAndMessage(t *testing.T) {
	var de *Error
	require.ErrorAs(t, New(CodeBadRequest, "callback carries no session identifier"), &de)
	require.Equal(t, CodeBadRequest, de.Code)
	require.Equal(t, "callback carries no session identifier", de.Message)
	require.Empty(t, de.Hint)
}

func TestNewWithHintCarriesRemediation(t *testing.T) {
	err := NewWithHint(CodeValidation,
		"wallet address malformed",
		"addresses start with 0x followed by 40 hex characters")

	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, CodeValidation, de.Code)
	require.Equal(t, "addresses start with 0x followed by 40 hex characters", de.Hint)
}

func TestWrapKeepsTheInnermostDomainCode(t *testing.T) {
	misconfig := New(CodeBadgeConfig, "unknown attribute method")
	wrapped := Wrap(misconfig, CodeInternal, "eligibility evaluation failed")

	var de *Error
	require.ErrorAs(t, wrapped, &de)
	require.Equal(t, CodeBadgeConfig, de.Code, "the root cause classification survives wrapping")
	require.Equal(t, "eligibility evaluation failed", de.Message)
	require.True(t, HasCode(wrapped, CodeBadgeConfig))
}

func TestWrapClassifiesForeignErrors(t *testing.T) {
	cause := errors.New("insufficient funds for gas")
	wrapped := Wrap(cause, CodeMinting, "submission failed")

	require.True(t, HasCode(wrapped, CodeMinting))
	require.ErrorIs(t, wrapped, cause)
}

func TestHasCode(t *testing.T) {
	require.True(t, HasCode(New(CodeConflict, "badge already held"), CodeConflict))
	require.False(t, HasCode(New(CodeNotFound, "gone"), CodeInternal))
	require.False(t, HasCode(errors.New("plain"), CodeNotFound))
	require.False(t, HasCode(nil, CodeNotFound))
}

// Package models defines the verification session lifecycle. A session is the
// single stateful record of one identity-verification attempt; provider
// adapters stay stateless and everything they learn lands here.
package models

import (
	"time"

	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
)

// Status is the session lifecycle state. A session leaves pending exactly
// once; completed, failed and expired are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// SessionType distinguishes identity verifications (primary, resolve a DID)
// from attribute verifications (secondary).
type SessionType string

const (
	TypePrimary   SessionType = "primary"
	TypeSecondary SessionType = "secondary"
)

// Session is one verification attempt for a wallet with a provider.
//
// # Lifecycle Invariant
//
// pending is the only non-terminal state. HandleCallback and the expiry sweep
// are the only writers after creation, and both refuse to touch a terminal
// session. A completed session stays usable until its expiry; it is never
// consumed by minting.
type Session struct {
	ID       id.SessionID
	Wallet   id.WalletAddress
	Provider string
	Type     SessionType
	Status   Status

	// ProviderRef is the provider's own session identifier from Initiate,
	// used to correlate the callback.
	ProviderRef string
	// VerificationURL is the challenge URL handed to the wallet owner.
	VerificationURL string

	// DID is the resolved identifier; set only when Status is completed.
	DID string
	// Metadata carries free-form provider result data for audit.
	Metadata map[string]any
	// FailureReason is human-readable; set when Status is failed or expired.
	FailureReason string

	CreatedAt   time.Time
	ExpiresAt   *time.Time
	CompletedAt *time.Time
}

// NewSession creates a pending session with domain invariant checks.
func NewSession(sessionID id.SessionID, wallet id.WalletAddress, provider string, sessionType SessionType, createdAt time.Time, expiresAt time.Time) (*Session, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "session ID required")
	}
	if wallet.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "wallet address required")
	}
	if provider == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "provider name required")
	}
	if sessionType != TypePrimary && sessionType != TypeSecondary {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid session type")
	}
	if !expiresAt.After(createdAt) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "session expiry must be after creation")
	}
	return &Session{
		ID:        sessionID,
		Wallet:    wallet,
		Provider:  provider,
		Type:      sessionType,
		Status:    StatusPending,
		CreatedAt: createdAt,
		ExpiresAt: &expiresAt,
	}, nil
}

// IsUsable reports whether the session satisfies a primary requirement at the
// given time: completed and not past expiry. Sessions without an expiry stay
// usable indefinitely.
func (s *Session) IsUsable(now time.Time) bool {
	if s.Status != StatusCompleted {
		return false
	}
	if s.ExpiresAt == nil {
		return true
	}
	return s.ExpiresAt.After(now)
}

// IsExpiredPending reports whether the sweep should transition this session.
func (s *Session) IsExpiredPending(now time.Time) bool {
	return s.Status == StatusPending && s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Complete transitions pending → completed. Terminal states are immutable.
func (s *Session) Complete(did string, metadata map[string]any, at time.Time) error {
	if err := s.ensurePending(); err != nil {
		return err
	}
	s.Status = StatusCompleted
	s.DID = did
	s.Metadata = metadata
	s.CompletedAt = &at
	return nil
}

// Fail transitions pending → failed. Terminal states are immutable.
func (s *Session) Fail(reason string, at time.Time) error {
	if err := s.ensurePending(); err != nil {
		return err
	}
	s.Status = StatusFailed
	s.FailureReason = reason
	s.CompletedAt = &at
	return nil
}

// Expire transitions pending → expired. Terminal states are immutable.
func (s *Session) Expire(at time.Time) error {
	if err := s.ensurePending(); err != nil {
		return err
	}
	s.Status = StatusExpired
	s.FailureReason = ReasonExpired
	s.CompletedAt = &at
	return nil
}

func (s *Session) ensurePending() error {
	if s.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "session already "+string(s.Status))
	}
	return nil
}

// Clone returns a deep copy so store reads never alias metadata maps.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		out.ExpiresAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.Metadata != nil {
		m := make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			m[k] = v
		}
		out.Metadata = m
	}
	return &out
}

// SessionFilter narrows session queries.
type SessionFilter struct {
	Provider *string
	Status   *Status
}

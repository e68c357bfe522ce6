// Package models defines the mint record state machine. A record is created
// pending once eligibility is approved, moves to processing when the ledger
// call starts, and ends completed or failed. Completed records may later be
// revoked, a one-way flag that frees the wallet's slot for the badge type
// without erasing history.
package models

import (
	"time"

	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
)

// Status is the mint lifecycle state. Transitions are monotonic:
// pending → processing → completed | failed. Nothing leaves failed; a new
// mint must be initiated instead.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MintRecord is one credential issuance for a wallet and badge type.
//
// # Uniqueness Invariant
//
// At most one live record exists per (wallet, badge type) pair. Live means
// not revoked and not failed: a failed attempt never blocks a retry, and
// revoking a completed record reopens the slot.
type MintRecord struct {
	ID          id.MintID
	Wallet      id.WalletAddress
	BadgeTypeID id.BadgeTypeID

	Status Status

	// IsRevoked invalidates a record without deleting it. One-way.
	IsRevoked    bool
	RevokeReason string
	RevokedAt    *time.Time

	// TokenID is the ledger token assigned on completion.
	TokenID *int64
	// TxHash is the ledger transaction. Set on completion, and on failure
	// when a transaction was accepted before the error.
	TxHash string

	// FailureReason is human-readable; set when Status is failed.
	FailureReason string
	// Metadata captures the eligibility snapshot used at initiation and
	// ledger detail recorded at the end of processing.
	Metadata map[string]any

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewMintRecord creates a pending record with domain invariant checks.
func NewMintRecord(mintID id.MintID, wallet id.WalletAddress, badgeTypeID id.BadgeTypeID, createdAt time.Time) (*MintRecord, error) {
	if mintID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "mint ID required")
	}
	if wallet.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "wallet address required")
	}
	if badgeTypeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "badge type ID required")
	}
	return &MintRecord{
		ID:          mintID,
		Wallet:      wallet,
		BadgeTypeID: badgeTypeID,
		Status:      StatusPending,
		Metadata:    map[string]any{},
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// Live reports whether the record occupies the wallet's slot for its badge
// type. Failed and revoked records do not count.
func (m *MintRecord) Live() bool {
	return !m.IsRevoked && m.Status != StatusFailed
}

// BeginProcessing transitions pending → processing.
func (m *MintRecord) BeginProcessing(at time.Time) error {
	if m.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "mint record already "+string(m.Status))
	}
	m.Status = StatusProcessing
	m.UpdatedAt = at
	return nil
}

// Complete transitions processing → completed and records the ledger result.
func (m *MintRecord) Complete(tokenID int64, txHash string, at time.Time) error {
	if m.Status != StatusProcessing {
		return dErrors.New(dErrors.CodeConflict, "cannot complete a "+string(m.Status)+" mint record")
	}
	m.Status = StatusCompleted
	m.TokenID = &tokenID
	m.TxHash = txHash
	m.CompletedAt = &at
	m.UpdatedAt = at
	return nil
}

// Fail moves any non-terminal record to failed. Allowed from pending as well
// as processing so that errors before the ledger call still land here.
func (m *MintRecord) Fail(reason string, at time.Time) error {
	if m.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeConflict, "mint record already "+string(m.Status))
	}
	m.Status = StatusFailed
	m.FailureReason = reason
	m.CompletedAt = &at
	m.UpdatedAt = at
	return nil
}

// Revoke sets the one-way revocation flag. The status is left untouched;
// revocation invalidates the record, it is not a lifecycle transition.
func (m *MintRecord) Revoke(reason string, at time.Time) error {
	if m.IsRevoked {
		return dErrors.New(dErrors.CodeConflict, "mint record already revoked")
	}
	m.IsRevoked = true
	m.RevokeReason = reason
	m.RevokedAt = &at
	m.UpdatedAt = at
	return nil
}

// Clone returns a deep copy so store reads never alias metadata maps.
func (m *MintRecord) Clone() *MintRecord {
	if m == nil {
		return nil
	}
	out := *m
	if m.RevokedAt != nil {
		t := *m.RevokedAt
		out.RevokedAt = &t
	}
	if m.TokenID != nil {
		v := *m.TokenID
		out.TokenID = &v
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		out.CompletedAt = &t
	}
	if m.Metadata != nil {
		meta := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			meta[k] = v
		}
		out.Metadata = meta
	}
	return &out
}

// RecordFilter narrows mint record queries. Revoked filters on the flag;
// nil matches both.
type RecordFilter struct {
	Status  *Status
	Revoked *bool
}

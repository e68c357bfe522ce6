// Package domain provides type-safe identifiers and the wallet address value
// type shared across emblem modules.
package domain

import (
	"github.com/google/uuid"

	dErrors "emblem/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a SessionID where a MintID is expected.
type (
	SessionID   uuid.UUID
	MintID      uuid.UUID
	BadgeTypeID uuid.UUID
	IssuerID    uuid.UUID
)

// Parse functions - use at trust boundaries (callbacks, control messages, API inputs).

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func ParseMintID(s string) (MintID, error) {
	id, err := parseUUID(s, "mint ID")
	return MintID(id), err
}

func ParseBadgeTypeID(s string) (BadgeTypeID, error) {
	id, err := parseUUID(s, "badge type ID")
	return BadgeTypeID(id), err
}

func ParseIssuerID(s string) (IssuerID, error) {
	id, err := parseUUID(s, "issuer ID")
	return IssuerID(id), err
}

// String methods - for logging and event payloads.

func (id SessionID) String() string   { return uuid.UUID(id).String() }
func (id MintID) String() string      { return uuid.UUID(id).String() }
func (id BadgeTypeID) String() string { return uuid.UUID(id).String() }
func (id IssuerID) String() string    { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id SessionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id MintID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id BadgeTypeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id IssuerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// New constructors for freshly created entities.

func NewSessionID() SessionID     { return SessionID(uuid.New()) }
func NewMintID() MintID           { return MintID(uuid.New()) }
func NewBadgeTypeID() BadgeTypeID { return BadgeTypeID(uuid.New()) }
func NewIssuerID() IssuerID       { return IssuerID(uuid.New()) }

// parseUUID is the shared validation logic. Nil UUIDs are allowed here; use
// IsNil() at the service layer so store lookups can return proper "not found"
// errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}

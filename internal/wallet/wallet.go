// Package wallet tracks the users of the system: wallet addresses seen during
// verification. Rows are created on first contact, enriched when a primary
// verification resolves a DID, and never deleted.
package wallet

import (
	"context"
	"time"

	id "emblem/pkg/domain"
)

// User is one wallet address known to the system. DID and DIDProvider are
// empty until a primary verification completes; a later verification through
// another provider overwrites them (last writer wins).
type User struct {
	Address     id.WalletAddress
	DID         string
	DIDProvider string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	UserAgent   string
}

// HasDID reports whether a primary verification has resolved an identity.
func (u *User) HasDID() bool { return u.DID != "" }

// Store defines wallet persistence.
// Error Contract:
// - Get and SetDID return sentinel.ErrNotFound when the wallet is unknown
// - EnsureExists never conflicts: it creates or refreshes and returns the row
type Store interface {
	EnsureExists(ctx context.Context, address id.WalletAddress, seenAt time.Time, userAgent string) (*User, error)
	Get(ctx context.Context, address id.WalletAddress) (*User, error)
	SetDID(ctx context.Context, address id.WalletAddress, did, provider string, at time.Time) error
}

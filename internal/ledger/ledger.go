// Package ledger integrates the badge ledger: submitting mint transactions
// and recovering token ids from the contract's mint events. The contract
// itself (non-transferable tokens, mint restricted to the authorized issuer)
// lives ledger-side behind a node sidecar; this package only speaks to the
// sidecar's API.
package ledger

import (
	"context"

	id "emblem/pkg/domain"
)

// MintResult is the confirmed outcome of a mint submission.
type MintResult struct {
	TokenID         int64
	TxHash          string
	BlockNumber     int64
	ContractAddress string
	GasUsed         int64
}

// Adapter is the capability the minting orchestrator depends on.
//
// Mint blocks until the ledger confirms the transaction or classifies the
// failure; callers that must not wait dispatch it from their own goroutine.
// Failures are returned as *LedgerError carrying the classification and, when
// a transaction was accepted before failing, its hash.
type Adapter interface {
	Mint(ctx context.Context, wallet id.WalletAddress, badgeTypeID int64) (*MintResult, error)

	// TokenOf recovers the token id recorded by the contract's mint event,
	// for when a submission's return was lost. ok is false when the wallet
	// holds no token for the badge type.
	TokenOf(ctx context.Context, wallet id.WalletAddress, badgeTypeID int64) (tokenID int64, ok bool, err error)

	// Health reports whether the ledger node is reachable.
	Health(ctx context.Context) error
}

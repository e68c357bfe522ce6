package ledger

// ContractVersion identifies the wire schema shared with the ledger node sidecar.
const ContractVersion = "v0.2.0"

// MintRequest asks the ledger node to mint one badge token for a wallet.
type MintRequest struct {
	WalletAddress string `json:"wallet_address"`
	BadgeTypeID   int64  `json:"badge_type_id"`
}

// MintReceipt is the ledger node's answer to a successful mint submission.
type MintReceipt struct {
	TokenID         int64  `json:"token_id"`
	TransactionHash string `json:"transaction_hash"`
	BlockNumber     int64  `json:"block_number"`
	ContractAddress string `json:"contract_address"`
	GasUsed         int64  `json:"gas_used"`
}

// TokenQuery looks up the token a wallet holds for a badge type, if any.
type TokenQuery struct {
	WalletAddress string `json:"wallet_address"`
	BadgeTypeID   int64  `json:"badge_type_id"`
}

// TokenAnswer carries the result of a TokenQuery. TokenID is meaningful only
// when Found is true.
type TokenAnswer struct {
	Found   bool  `json:"found"`
	TokenID int64 `json:"token_id"`
}

// ErrorReply is the ledger node's failure envelope. Code is one of the
// classified failure kinds: "insufficient_funds", "reverted",
// "network_unreachable", "nonce_conflict".
type ErrorReply struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}

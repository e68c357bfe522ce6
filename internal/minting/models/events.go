package models

// Event types published to the bus and mirrored through the outbox.
const (
	EventMintStarted    = "mint.started"
	EventMintProcessing = "mint.processing"
	EventMintCompleted  = "mint.completed"
	EventMintFailed     = "mint.failed"
	EventMintRevoked    = "mint.revoked"

	// EventMintRejected is published when initiation is refused before any
	// record exists: inactive badge, ineligible wallet, or a completed mint
	// already holding the slot.
	EventMintRejected = "mint.rejected"

	// EventMintSuccess is the topic-scoped completion announcement delivered
	// to the badge channel, for observers watching a badge rather than a
	// wallet.
	EventMintSuccess = "mint.success"
)

// ChannelAudit carries administrative transitions, currently revocations.
const ChannelAudit = "audit"

// BadgeChannel names the topic channel for one badge type, e.g.
// "badge:dao-voter".
func BadgeChannel(key string) string {
	return "badge:" + key
}

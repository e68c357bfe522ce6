package models

// Event types published to the bus and mirrored through the outbox.
const (
	EventSessionCreated   = "verification.created"
	EventSessionCompleted = "verification.completed"
	EventSessionFailed    = "verification.failed"
	EventSessionExpired   = "verification.expired"
)

// ChannelVerifications is the bus channel carrying every session transition,
// regardless of wallet. Wallet owners additionally get the same events on
// their wallet scope.
const ChannelVerifications = "verifications"

// ReasonExpired is the failure reason stamped on sessions that ran out the
// verification window. The SQL sweep writes the same string.
const ReasonExpired = "verification window elapsed"

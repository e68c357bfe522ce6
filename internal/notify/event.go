// Package notify fans domain state transitions out to connected observers.
//
// Publishers address either a named channel or a single wallet. Delivery is
// fire-and-forget per subscriber: a slow consumer is disconnected rather
// than allowed to stall the publishing goroutine.
package notify

import "time"

// Event is what domain code publishes. The bus wraps it into an Envelope
// before delivery.
type Event struct {
	Type    string
	Payload map[string]any
}

// Envelope is the wire format delivered to connections. Channel is set only
// for channel-scoped deliveries.
type Envelope struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	Channel   string         `json:"channel,omitempty"`
}

// Reply types the bus itself produces on control messages.
const (
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypePong         = "pong"
	TypeError        = "error"
)

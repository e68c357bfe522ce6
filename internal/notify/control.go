package notify

import (
	"context"
	"encoding/json"

	"emblem/pkg/requestcontext"
)

// controlMessage is the inbound frame shape. Older clients send a single
// "channel" string instead of the "channels" array; both are accepted.
type controlMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	Channel  string   `json:"channel"`
}

func (m controlMessage) channelNames() []string {
	names := make([]string, 0, len(m.Channels)+1)
	for _, name := range m.Channels {
		if name != "" {
			names = append(names, name)
		}
	}
	if m.Channel != "" {
		names = append(names, m.Channel)
	}
	return names
}

// HandleControl processes one inbound frame from the client and queues the
// reply. Unknown or malformed frames get an error envelope rather than a
// disconnect so one bad message does not kill the stream.
func (b *Bus) HandleControl(ctx context.Context, client *Client, raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		b.reply(ctx, client, TypeError, map[string]any{"message": "malformed control message"})
		return
	}

	if b.metrics != nil {
		b.metrics.ControlMessages.WithLabelValues(msg.Type).Inc()
	}

	switch msg.Type {
	case "subscribe":
		names := msg.channelNames()
		if len(names) == 0 {
			b.reply(ctx, client, TypeError, map[string]any{"message": "subscribe requires at least one channel"})
			return
		}
		all, added := b.Subscribe(client, names)
		b.reply(ctx, client, TypeSubscribed, map[string]any{
			"channels": orEmpty(all),
			"added":    orEmpty(added),
		})

	case "unsubscribe":
		remaining := b.Unsubscribe(client, msg.channelNames())
		b.reply(ctx, client, TypeUnsubscribed, map[string]any{
			"channels": orEmpty(remaining),
		})

	case "ping":
		b.reply(ctx, client, TypePong, map[string]any{})

	default:
		b.reply(ctx, client, TypeError, map[string]any{"message": "unsupported message type: " + msg.Type})
	}
}

func (b *Bus) reply(ctx context.Context, client *Client, msgType string, payload map[string]any) {
	env := Envelope{
		Type:      msgType,
		Payload:   payload,
		Timestamp: requestcontext.Now(ctx),
	}
	b.deliver([]*Client{client}, env)
}

func orEmpty(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

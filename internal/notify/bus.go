package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"emblem/internal/notify/metrics"
	"emblem/pkg/domain"
	"emblem/pkg/requestcontext"
)

const defaultSendBuffer = 32

// Bus is the connection registry with channel and wallet scoped addressing.
// All methods are safe for concurrent use. Publishing never blocks on a
// subscriber: a client whose buffer is full is closed and detached.
type Bus struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sendBuffer int

	mu       sync.RWMutex
	clients  map[string]*Client
	channels map[string]map[string]*Client
	wallets  map[domain.WalletAddress]map[string]*Client
}

// Option configures the Bus.
type Option func(*Bus)

// WithSendBuffer sets the per-client outbound queue size.
func WithSendBuffer(size int) Option {
	return func(b *Bus) {
		if size > 0 {
			b.sendBuffer = size
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

func New(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		logger:     logger,
		sendBuffer: defaultSendBuffer,
		clients:    make(map[string]*Client),
		channels:   make(map[string]map[string]*Client),
		wallets:    make(map[domain.WalletAddress]map[string]*Client),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach registers a connection and returns its client handle. An empty
// wallet attaches an anonymous client that can only follow channels.
func (b *Bus) Attach(conn Conn, wallet domain.WalletAddress) *Client {
	client := newClient(conn, wallet, b.sendBuffer)

	b.mu.Lock()
	b.clients[client.id] = client
	if wallet != "" {
		set, ok := b.wallets[wallet]
		if !ok {
			set = make(map[string]*Client)
			b.wallets[wallet] = set
		}
		set[client.id] = client
	}
	total := len(b.clients)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.ConnectedClients.Set(float64(total))
	}
	b.logger.Debug("client attached", "client_id", client.id, "wallet", wallet)
	return client
}

// Detach removes the client from every registry and closes its connection.
// Safe to call more than once.
func (b *Bus) Detach(client *Client) {
	if client == nil {
		return
	}

	b.mu.Lock()
	if _, ok := b.clients[client.id]; ok {
		delete(b.clients, client.id)
		for channel := range client.subs {
			b.dropFromChannel(channel, client.id)
		}
		if client.wallet != "" {
			if set, ok := b.wallets[client.wallet]; ok {
				delete(set, client.id)
				if len(set) == 0 {
					delete(b.wallets, client.wallet)
				}
			}
		}
	}
	total := len(b.clients)
	b.mu.Unlock()

	client.close()
	if b.metrics != nil {
		b.metrics.ConnectedClients.Set(float64(total))
	}
	b.logger.Debug("client detached", "client_id", client.id)
}

// dropFromChannel must be called with b.mu held.
func (b *Bus) dropFromChannel(channel, clientID string) {
	set, ok := b.channels[channel]
	if !ok {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(b.channels, channel)
	}
}

// Subscribe adds the client to the named channels and returns the full
// subscription set plus the delta that was actually added. Blank names are
// ignored; a detached client gets nothing.
func (b *Bus) Subscribe(client *Client, channels []string) (all, added []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[client.id]; !ok {
		return nil, nil
	}

	for _, channel := range channels {
		if channel == "" {
			continue
		}
		if _, ok := client.subs[channel]; ok {
			continue
		}
		client.subs[channel] = struct{}{}
		set, ok := b.channels[channel]
		if !ok {
			set = make(map[string]*Client)
			b.channels[channel] = set
		}
		set[client.id] = client
		added = append(added, channel)
	}

	sort.Strings(added)
	return b.subscriptionsLocked(client), added
}

// Unsubscribe removes the client from the named channels, or from all of
// them when the list is empty. It returns the remaining subscription set.
func (b *Bus) Unsubscribe(client *Client, channels []string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(channels) == 0 {
		for channel := range client.subs {
			b.dropFromChannel(channel, client.id)
		}
		client.subs = make(map[string]struct{})
		return nil
	}

	for _, channel := range channels {
		if _, ok := client.subs[channel]; !ok {
			continue
		}
		delete(client.subs, channel)
		b.dropFromChannel(channel, client.id)
	}
	return b.subscriptionsLocked(client)
}

// Subscriptions returns the client's current channel set, sorted.
func (b *Bus) Subscriptions(client *Client) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subscriptionsLocked(client)
}

// subscriptionsLocked must be called with b.mu held.
func (b *Bus) subscriptionsLocked(client *Client) []string {
	if len(client.subs) == 0 {
		return nil
	}
	out := make([]string, 0, len(client.subs))
	for channel := range client.subs {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}

// PublishChannel delivers the event to every subscriber of the channel.
func (b *Bus) PublishChannel(ctx context.Context, channel string, event Event) {
	env := Envelope{
		Type:      event.Type,
		Payload:   event.Payload,
		Timestamp: requestcontext.Now(ctx),
		Channel:   channel,
	}

	b.mu.RLock()
	targets := collect(b.channels[channel])
	b.mu.RUnlock()

	b.deliver(targets, env)
	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues("channel", event.Type).Inc()
	}
}

// PublishWallet delivers the event to every connection authenticated as the
// wallet.
func (b *Bus) PublishWallet(ctx context.Context, wallet domain.WalletAddress, event Event) {
	env := Envelope{
		Type:      event.Type,
		Payload:   event.Payload,
		Timestamp: requestcontext.Now(ctx),
	}

	b.mu.RLock()
	targets := collect(b.wallets[wallet])
	b.mu.RUnlock()

	b.deliver(targets, env)
	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues("wallet", event.Type).Inc()
	}
}

// deliver runs outside the registry lock so a Detach triggered by a full
// buffer cannot deadlock.
func (b *Bus) deliver(targets []*Client, env Envelope) {
	for _, client := range targets {
		if client.enqueue(env) {
			continue
		}
		b.logger.Warn("dropping unresponsive subscriber",
			"client_id", client.id,
			"event_type", env.Type,
		)
		if b.metrics != nil {
			b.metrics.ClientsDropped.Inc()
		}
		b.Detach(client)
	}
}

func collect(set map[string]*Client) []*Client {
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for _, client := range set {
		out = append(out, client)
	}
	return out
}

// ClientCount reports the number of attached clients.
func (b *Bus) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

package notify

import (
	"sync"

	"github.com/google/uuid"

	"emblem/pkg/domain"
)

// Conn is the transport-side handle the bus force-closes when a client
// misbehaves. The WebSocket adapter wraps its connection in this.
type Conn interface {
	Close() error
}

// Client is one attached connection. Outbound envelopes are queued on a
// buffered channel drained by the transport's write loop.
type Client struct {
	id     string
	wallet domain.WalletAddress
	conn   Conn

	send chan Envelope
	done chan struct{}
	once sync.Once

	// subs is guarded by the owning bus's mutex.
	subs map[string]struct{}
}

func newClient(conn Conn, wallet domain.WalletAddress, buffer int) *Client {
	return &Client{
		id:     uuid.NewString(),
		wallet: wallet,
		conn:   conn,
		send:   make(chan Envelope, buffer),
		done:   make(chan struct{}),
		subs:   make(map[string]struct{}),
	}
}

// ID identifies the client for logs.
func (c *Client) ID() string {
	return c.id
}

// Wallet returns the authenticated wallet, or the zero value for anonymous
// connections. Anonymous clients receive channel traffic only.
func (c *Client) Wallet() domain.WalletAddress {
	return c.wallet
}

// Send is drained by the transport write loop.
func (c *Client) Send() <-chan Envelope {
	return c.send
}

// Done is closed when the client has been shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// enqueue attempts a non-blocking delivery. It reports false when the client
// is closed or its buffer is full.
func (c *Client) enqueue(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

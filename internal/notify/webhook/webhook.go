// Package webhook pushes bus envelopes to issuer-registered HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"emblem/internal/notify"
	"emblem/pkg/requestcontext"
)

const defaultTimeout = 10 * time.Second

// Doer abstracts the HTTP client for testing.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier delivers events to webhook URLs. Delivery is best-effort: a dead
// endpoint is logged and forgotten, never retried, and never blocks the
// caller.
type Notifier struct {
	client  Doer
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures the Notifier.
type Option func(*Notifier)

// WithTimeout bounds a single delivery attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

func New(client Doer, logger *slog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		client:  client,
		logger:  logger,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts the event to the URL in the background. An empty URL is a
// no-op so callers can pass through unset issuer webhooks.
func (n *Notifier) Notify(ctx context.Context, url string, event notify.Event) {
	if url == "" {
		return
	}
	env := notify.Envelope{
		Type:      event.Type,
		Payload:   event.Payload,
		Timestamp: requestcontext.Now(ctx),
	}
	// Detached from the caller's cancellation: the triggering request may
	// finish before the webhook round-trip does.
	go n.post(context.WithoutCancel(ctx), url, env)
}

func (n *Notifier) post(ctx context.Context, url string, env notify.Envelope) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body, err := json.Marshal(env)
	if err != nil {
		n.logger.Error("failed to encode webhook payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("failed to build webhook request", "url", url, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			"url", url,
			"event_type", env.Type,
			"error", err,
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warn("webhook endpoint rejected event",
			"url", url,
			"event_type", env.Type,
			"status", resp.StatusCode,
		)
	}
}

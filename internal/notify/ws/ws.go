// Package ws exposes the event bus over WebSocket.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"emblem/internal/audit"
	"emblem/internal/notify"
	"emblem/internal/platform/config"
	"emblem/internal/platform/device"
	"emblem/internal/platform/middleware"
	"emblem/internal/platform/privacy"
	"emblem/pkg/domain"
)

// Control frames must fit comfortably in this; anything larger is abuse.
const maxMessageSize = 4096

// Handler upgrades HTTP requests and bridges connections onto the bus.
//
// Authentication is optional at this endpoint: a valid wallet token binds
// the connection to its wallet for wallet-scoped events, no token attaches
// an anonymous client that can only follow channels. An invalid token is
// rejected before the upgrade.
type Handler struct {
	bus      *notify.Bus
	verifier middleware.WalletTokenVerifier
	auditor  *audit.Publisher
	logger   *slog.Logger
	upgrader websocket.Upgrader

	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
}

// Option configures the Handler.
type Option func(*Handler)

// WithAuditor records connection attachments in the outbox.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(h *Handler) { h.auditor = auditor }
}

func NewHandler(bus *notify.Bus, verifier middleware.WalletTokenVerifier, cfg config.Notify, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		bus:      bus,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with wallet tokens, not cookies, so
			// cross-origin upgrades carry no ambient credentials.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: cfg.PingInterval,
		pongWait:     cfg.PongWait,
		writeWait:    cfg.WriteWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.serve)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	var wallet domain.WalletAddress
	if token := middleware.BearerToken(r); token != "" {
		verified, err := h.verifier.VerifyWalletToken(token)
		if err != nil {
			h.logger.Warn("websocket auth failed",
				"error", err,
				"ip", privacy.AnonymizeIP(middleware.GetClientIP(r.Context())),
			)
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		wallet = verified
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := h.bus.Attach(conn, wallet)
	clientDesc := device.Describe(middleware.GetUserAgent(r.Context()))
	remoteIP := privacy.AnonymizeIP(middleware.GetClientIP(r.Context()))
	h.logger.Info("websocket connected",
		"client_id", client.ID(),
		"wallet", wallet,
		"ip", remoteIP,
		"client", clientDesc,
	)
	h.recordAttach(r, client, wallet, clientDesc, remoteIP)

	go h.writeLoop(conn, client)
	h.readLoop(r, conn, client)
}

// recordAttach mirrors the attachment into the outbox so connection history
// survives the connection itself.
func (h *Handler) recordAttach(r *http.Request, client *notify.Client, wallet domain.WalletAddress, clientDesc, remoteIP string) {
	if h.auditor == nil {
		return
	}
	payload := map[string]any{
		"client_id": client.ID(),
		"client":    clientDesc,
		"remote_ip": remoteIP,
	}
	if wallet != "" {
		payload["wallet"] = string(wallet)
	}
	_ = h.auditor.Emit(r.Context(), audit.Event{
		AggregateType: audit.AggregateBusClient,
		AggregateID:   client.ID(),
		EventType:     "bus.client_attached",
		Payload:       payload,
	})
}

// readLoop consumes control frames until the connection dies. Liveness is
// protocol-level: the write loop pings on an interval and the read deadline
// only advances when the peer answers with a pong.
func (h *Handler) readLoop(r *http.Request, conn *websocket.Conn, client *notify.Client) {
	defer h.bus.Detach(client)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket closed", "client_id", client.ID(), "error", err)
			}
			return
		}
		h.bus.HandleControl(r.Context(), client, raw)
	}
}

// writeLoop drains the client queue onto the wire and keeps the liveness
// probe ticking. Any write failure tears the connection down.
func (h *Handler) writeLoop(conn *websocket.Conn, client *notify.Client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteJSON(env); err != nil {
				h.bus.Detach(client)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.bus.Detach(client)
				return
			}
		case <-client.Done():
			deadline := time.Now().Add(h.writeWait)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
			return
		}
	}
}

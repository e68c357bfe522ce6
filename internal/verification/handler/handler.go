// Package handler exposes the inbound provider-callback route, the one REST
// surface identity providers need. Everything else leaves over the bus.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"emblem/internal/verification/models"
	dErrors "emblem/pkg/domain-errors"
	"emblem/pkg/platform/httputil"
)

// CallbackService is the slice of the verification service this route needs.
type CallbackService interface {
	HandleCallback(ctx context.Context, providerName string, payload json.RawMessage, sessionIDArg string) (*models.Session, error)
}

const maxCallbackBytes = 1 << 20

type Handler struct {
	service CallbackService
	logger  *slog.Logger
}

func New(service CallbackService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the callback route on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/callbacks/{provider}", h.callback)
}

// callback acknowledges every processed outcome with 200 so providers stop
// retrying; the session status in the body says how it ended. Errors mean
// the callback could not be applied and a retry might still land.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable callback body"))
		return
	}

	session, err := h.service.HandleCallback(r.Context(), provider, payload, sessionID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "callback_rejected",
			"provider", provider,
			"session_id", sessionID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	response := map[string]string{
		"session_id": session.ID.String(),
		"status":     string(session.Status),
	}
	if session.FailureReason != "" {
		response["reason"] = session.FailureReason
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/notify-stream/internal/api/middleware"
	"github.com/notifyhub/notify-stream/internal/service"
)

// ConnectRequest is the optional body of POST /api/v1/connection.
type ConnectRequest struct {
	// Token replaces the cached credential. Empty means reuse it.
	Token string `json:"token"`
}

// ConnectionHandler starts, inspects and ends the notification session.
type ConnectionHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewConnectionHandler(svc *service.NotificationService, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{svc: svc, logger: logger}
}

// Connect handles POST /api/v1/connection. A single attempt is made; the
// caller decides whether to retry.
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.svc.Connect(r.Context(), req.Token); err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("connect failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.svc.Status())
}

// Status handles GET /api/v1/connection
func (h *ConnectionHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Status())
}

// Disconnect handles DELETE /api/v1/connection
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Disconnect(); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

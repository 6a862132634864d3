package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notifyhub/notify-stream/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyConnected),
		errors.Is(err, domain.ErrNotConnected):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoCredential):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrEmptyNotification):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrTransport):
		// The error text is already scrubbed of the credential.
		respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrConnectionClosed):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

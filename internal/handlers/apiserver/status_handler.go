package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"safelink/internal/middleware"
	"safelink/internal/services"
)

// StatusHandler handles safe-home check-ins and quick status messages.
type StatusHandler struct {
	statusService services.StatusService
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(statusService services.StatusService) *StatusHandler {
	return &StatusHandler{statusService: statusService}
}

// QuickMessagePayload defines the JSON body for a quick message.
type QuickMessagePayload struct {
	Message string `json:"message"`
}

// SafeHomeHandler handles POST /api/v1/status/safe-home
func (h *StatusHandler) SafeHomeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	notified, err := h.statusService.SafeHome(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNoFriendsToNotify) {
			writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Printf("api: safe-home by user %d failed: %v", userID, err)
		writeJSONError(w, "failed to send check-in", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"notified": notified})
}

// QuickMessageHandler handles POST /api/v1/status/message
func (h *StatusHandler) QuickMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	var payload QuickMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	notified, err := h.statusService.QuickMessage(r.Context(), userID, payload.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrMessageTooLong):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrNoFriendsToNotify):
			writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			log.Printf("api: quick message by user %d failed: %v", userID, err)
			writeJSONError(w, "failed to send message", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"notified": notified})
}

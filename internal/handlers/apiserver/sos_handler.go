package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"safelink/internal/middleware"
	"safelink/internal/services"
)

// SOSHandler handles SOS alert requests.
type SOSHandler struct {
	sosService services.SOSService
}

// NewSOSHandler creates a new SOSHandler.
func NewSOSHandler(sosService services.SOSService) *SOSHandler {
	return &SOSHandler{sosService: sosService}
}

// CreateAlertPayload defines the JSON body for raising an alert.
type CreateAlertPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Message   string  `json:"message,omitempty"`
}

// CreateAlertHandler handles POST /api/v1/sos
func (h *SOSHandler) CreateAlertHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	var payload CreateAlertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	alert, err := h.sosService.CreateAlert(r.Context(), userID, payload.Latitude, payload.Longitude, payload.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCoordinates):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrNoRecipients):
			// 422: the request was well-formed but there is no audience.
			writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			log.Printf("api: create SOS alert by user %d failed: %v", userID, err)
			writeJSONError(w, "failed to create alert", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, alert)
}

// CancelAlertHandler handles POST /api/v1/sos/{alertID}/cancel
func (h *SOSHandler) CancelAlertHandler(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.sosService.CancelAlert, "alert cancelled")
}

// ResolveAlertHandler handles POST /api/v1/sos/{alertID}/resolve
func (h *SOSHandler) ResolveAlertHandler(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.sosService.ResolveAlert, "alert resolved")
}

// settle is shared by cancel and resolve; they differ only in the
// service call and the success message.
func (h *SOSHandler) settle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, alertID uint) error, done string) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	alertID, ok := pathID(w, r, "alertID")
	if !ok {
		return
	}

	if err := op(r.Context(), userID, alertID); err != nil {
		switch {
		case errors.Is(err, services.ErrAlertNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotAlertOwner):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrAlertNotActive):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("api: settle alert %d by user %d failed: %v", alertID, userID, err)
			writeJSONError(w, "failed to update alert", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": done})
}

// ListMineHandler handles GET /api/v1/sos/mine
func (h *SOSHandler) ListMineHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	alerts, err := h.sosService.ListMine(r.Context(), userID)
	if err != nil {
		log.Printf("api: list own alerts for user %d failed: %v", userID, err)
		writeJSONError(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, alerts)
}

// ListReceivedHandler handles GET /api/v1/sos/received
func (h *SOSHandler) ListReceivedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	alerts, err := h.sosService.ListReceived(r.Context(), userID)
	if err != nil {
		log.Printf("api: list received alerts for user %d failed: %v", userID, err)
		writeJSONError(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, alerts)
}

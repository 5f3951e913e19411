package apiserver

import (
	"encoding/json"
	"log"
	"net/http"

	"safelink/internal/middleware"
	"safelink/internal/models"
	"safelink/internal/storage"
)

// SubscriptionHandler handles push-subscription registration. Thin
// enough that it talks to the repository directly.
type SubscriptionHandler struct {
	subs storage.SubscriptionRepository
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subs storage.SubscriptionRepository) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

// SubscriptionPayload defines the JSON body for push registration.
type SubscriptionPayload struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

// RegisterHandler handles POST /api/v1/push-subscriptions
func (h *SubscriptionHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	var payload SubscriptionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.Token == "" {
		writeJSONError(w, "missing token", http.StatusBadRequest)
		return
	}

	sub := &models.PushSubscription{
		UserID:   userID,
		Token:    payload.Token,
		Platform: payload.Platform,
		IsActive: true,
	}
	if err := h.subs.Upsert(r.Context(), sub); err != nil {
		log.Printf("api: push registration for user %d failed: %v", userID, err)
		writeJSONError(w, "failed to register push token", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "push token registered"})
}

// UnregisterHandler handles DELETE /api/v1/push-subscriptions
func (h *SubscriptionHandler) UnregisterHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	var payload SubscriptionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.Token == "" {
		writeJSONError(w, "missing token", http.StatusBadRequest)
		return
	}

	if err := h.subs.Deactivate(r.Context(), userID, payload.Token); err != nil {
		log.Printf("api: push unregistration for user %d failed: %v", userID, err)
		writeJSONError(w, "failed to unregister push token", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "push token unregistered"})
}

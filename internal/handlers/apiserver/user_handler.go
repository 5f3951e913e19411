package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"safelink/internal/middleware"
	"safelink/internal/models"
	"safelink/internal/services"
)

// UserHandler handles profile and user-search requests.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UpdateProfilePayload defines the JSON body for profile updates.
// Omitted fields are left unchanged.
type UpdateProfilePayload struct {
	Nickname          *string `json:"nickname,omitempty"`
	AvatarURL         *string `json:"avatarUrl,omitempty"`
	ShareWithEveryone *bool   `json:"shareWithEveryone,omitempty"`
}

// UpdateLocationPayload defines the JSON body for location reports.
type UpdateLocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GetMeHandler handles GET /api/v1/users/me
func (h *UserHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("api: failed to load profile of user %d: %v", userID, err)
		writeJSONError(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateMeHandler handles PUT /api/v1/users/me
func (h *UserHandler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	var payload UpdateProfilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, err := h.userService.UpdateProfile(r.Context(), userID, services.ProfileUpdate{
		Nickname:          payload.Nickname,
		AvatarURL:         payload.AvatarURL,
		ShareWithEveryone: payload.ShareWithEveryone,
	})
	if err != nil {
		log.Printf("api: failed to update profile of user %d: %v", userID, err)
		writeJSONError(w, "failed to update profile", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateLocationHandler handles PUT /api/v1/users/me/location
func (h *UserHandler) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	var payload UpdateLocationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.userService.UpdateLocation(r.Context(), userID, payload.Latitude, payload.Longitude); err != nil {
		if errors.Is(err, services.ErrInvalidCoordinates) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("api: failed to update location of user %d: %v", userID, err)
		writeJSONError(w, "failed to update location", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "location updated"})
}

// SearchUsersHandler handles GET /api/v1/users/search?q=...
func (h *UserHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "missing query parameter q", http.StatusBadRequest)
		return
	}

	users, err := h.userService.Search(r.Context(), query, userID)
	if err != nil {
		log.Printf("api: user search failed for user %d: %v", userID, err)
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSONResponse(w, http.StatusOK, users)
}

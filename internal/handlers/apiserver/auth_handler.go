package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"safelink/internal/services"
)

// AuthHandler handles registration, login and logout requests.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterPayload defines the expected JSON body for registration.
type RegisterPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// LoginPayload defines the expected JSON body for login.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterHandler handles POST /api/v1/auth/register
func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" || payload.Password == "" {
		writeJSONError(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if len(payload.Password) < 8 {
		writeJSONError(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Register(r.Context(), payload.Username, payload.Password, payload.Email, payload.Nickname)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) || errors.Is(err, services.ErrEmailTaken) {
			writeJSONError(w, err.Error(), http.StatusConflict)
		} else {
			log.Printf("api: registration failed for %q: %v", payload.Username, err)
			writeJSONError(w, "registration failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, user)
}

// LoginHandler handles POST /api/v1/auth/login
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	token, user, err := h.authService.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSONError(w, err.Error(), http.StatusUnauthorized)
		} else if errors.Is(err, services.ErrAccountDisabled) {
			writeJSONError(w, err.Error(), http.StatusForbidden)
		} else {
			log.Printf("api: login failed for %q: %v", payload.Username, err)
			writeJSONError(w, "login failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// LogoutHandler handles POST /api/v1/auth/logout
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		writeJSONError(w, "missing bearer token", http.StatusBadRequest)
		return
	}

	if err := h.authService.Logout(r.Context(), tokenString); err != nil {
		log.Printf("api: logout failed: %v", err)
		writeJSONError(w, "logout failed", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

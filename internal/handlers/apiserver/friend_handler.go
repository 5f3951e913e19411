package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"safelink/internal/middleware"
	"safelink/internal/services"
)

// FriendHandler handles friend-relationship requests: sending,
// answering and cancelling requests, removing friends, blocking.
type FriendHandler struct {
	friendService services.FriendService
}

// NewFriendHandler creates a new FriendHandler.
func NewFriendHandler(friendService services.FriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

// SendRequestPayload defines the JSON body for sending a friend request.
type SendRequestPayload struct {
	RecipientID uint   `json:"recipientId"`
	Message     string `json:"message,omitempty"`
}

// SendRequestHandler handles POST /api/v1/friend-requests
func (h *FriendHandler) SendRequestHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	var payload SendRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.RecipientID == 0 {
		writeJSONError(w, "missing recipientId", http.StatusBadRequest)
		return
	}

	rel, err := h.friendService.SendRequest(r.Context(), requesterID, payload.RecipientID, payload.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfRequest),
			errors.Is(err, services.ErrRecipientNotFound):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrAlreadyFriends),
			errors.Is(err, services.ErrRequestAlreadySent),
			errors.Is(err, services.ErrRequestAlreadyReceived),
			errors.Is(err, services.ErrRelationshipConflict):
			writeJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, services.ErrRequestBlocked):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrTooManyRequestsSent),
			errors.Is(err, services.ErrRecipientInboxFull):
			writeJSONError(w, err.Error(), http.StatusTooManyRequests)
		default:
			log.Printf("api: send friend request %d -> %d failed: %v", requesterID, payload.RecipientID, err)
			writeJSONError(w, "failed to send friend request", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, rel)
}

// RespondHandler handles POST /api/v1/friend-requests/{requestID}/accept
// and POST /api/v1/friend-requests/{requestID}/reject
func (h *FriendHandler) RespondHandler(accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responderID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
			return
		}

		requestID, ok := pathID(w, r, "requestID")
		if !ok {
			return
		}

		if err := h.friendService.RespondToRequest(r.Context(), responderID, requestID, accept); err != nil {
			switch {
			case errors.Is(err, services.ErrRequestNotFound):
				writeJSONError(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, services.ErrNotRecipientOfRequest):
				writeJSONError(w, err.Error(), http.StatusForbidden)
			case errors.Is(err, services.ErrRequestNotPending):
				writeJSONError(w, err.Error(), http.StatusConflict)
			default:
				log.Printf("api: respond to friend request %d by user %d failed: %v", requestID, responderID, err)
				writeJSONError(w, "failed to process friend request", http.StatusInternalServerError)
			}
			return
		}

		message := "friend request rejected"
		if accept {
			message = "friend request accepted"
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"message": message})
	}
}

// CancelRequestHandler handles DELETE /api/v1/friend-requests/{requestID}
func (h *FriendHandler) CancelRequestHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), requesterID, requestID); err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotRequesterOfRequest):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrRequestNotPending):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("api: cancel friend request %d by user %d failed: %v", requestID, requesterID, err)
			writeJSONError(w, "failed to cancel friend request", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "friend request cancelled"})
}

// ListRequestsHandler handles GET /api/v1/friend-requests
func (h *FriendHandler) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	requests, err := h.friendService.ListRequests(r.Context(), userID)
	if err != nil {
		log.Printf("api: list friend requests for user %d failed: %v", userID, err)
		writeJSONError(w, "failed to list friend requests", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// ListFriendsHandler handles GET /api/v1/friends
func (h *FriendHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), userID)
	if err != nil {
		log.Printf("api: list friends for user %d failed: %v", userID, err)
		writeJSONError(w, "failed to list friends", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// RemoveFriendHandler handles DELETE /api/v1/friends/{userID}
func (h *FriendHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	friendID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.friendService.RemoveFriend(r.Context(), userID, friendID); err != nil {
		if errors.Is(err, services.ErrNotFriends) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("api: remove friend %d by user %d failed: %v", friendID, userID, err)
		writeJSONError(w, "failed to remove friend", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "friend removed"})
}

// BlockHandler handles POST /api/v1/blocks/{userID}
func (h *FriendHandler) BlockHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	targetID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.friendService.BlockUser(r.Context(), userID, targetID); err != nil {
		switch {
		case errors.Is(err, services.ErrSelfBlock), errors.Is(err, services.ErrRecipientNotFound):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrRequestBlocked), errors.Is(err, services.ErrRelationshipConflict):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("api: block user %d by user %d failed: %v", targetID, userID, err)
			writeJSONError(w, "failed to block user", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "user blocked"})
}

// UnblockHandler handles DELETE /api/v1/blocks/{userID}
func (h *FriendHandler) UnblockHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	targetID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.friendService.UnblockUser(r.Context(), userID, targetID); err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotRequesterOfRequest):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		default:
			log.Printf("api: unblock user %d by user %d failed: %v", targetID, userID, err)
			writeJSONError(w, "failed to unblock user", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "user unblocked"})
}

// pathID extracts and parses a uint path variable, writing the error
// response itself when the variable is missing or malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		writeJSONError(w, "missing "+name, http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeJSONError(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

package apiserver

import (
	"log"
	"net/http"
	"strconv"

	"safelink/internal/middleware"
	"safelink/internal/storage"
)

const (
	activityDefaultLimit = 50
	activityMaxLimit     = 200
)

// ActivityHandler serves the user's activity feed. The feed is written
// asynchronously by the activity consumer; this endpoint only reads.
type ActivityHandler struct {
	activities storage.ActivityRepository
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activities storage.ActivityRepository) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// ListHandler handles GET /api/v1/activity?limit=...
func (h *ActivityHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "could not resolve user from context", http.StatusUnauthorized)
		return
	}

	limit := activityDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if parsed > activityMaxLimit {
			parsed = activityMaxLimit
		}
		limit = parsed
	}

	entries, err := h.activities.ListForUser(r.Context(), userID, limit)
	if err != nil {
		log.Printf("api: list activity for user %d failed: %v", userID, err)
		writeJSONError(w, "failed to load activity feed", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, entries)
}

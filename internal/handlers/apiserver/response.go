package apiserver

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the JSON shape of every error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONResponse sends data as a JSON response with the given status.
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already out; all we can do is log.
			log.Printf("api: failed to encode JSON response: %v", err)
		}
	}
}

// writeJSONError sends a JSON-formatted error response.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}

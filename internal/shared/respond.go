package shared

import (
	"encoding/json"
	"net/http"
)

// RespondJSON writes the payload with the given status code.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// ErrorBody is the JSON shape of error responses.
type ErrorBody struct {
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// RespondError writes a structured error response.
func RespondError(w http.ResponseWriter, status int, body ErrorBody) {
	RespondJSON(w, status, map[string]any{"error": body})
}

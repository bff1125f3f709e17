// Package httpx provides HTTP response utilities for the JSON API envelope.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response shape: every payload carries a status
// field of "success" or "error".
type Envelope map[string]any

// Success sends a 200 success envelope merged with the provided fields.
func Success(w http.ResponseWriter, fields Envelope) {
	body := Envelope{"status": "success"}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, http.StatusOK, body)
}

// Error sends an error envelope with the given HTTP status and message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{"status": "error", "message": message})
}

// ValidationFailed sends the per-field validation error envelope. Observed
// convention keeps the transport status at 200; the envelope carries the
// error state.
func ValidationFailed(w http.ResponseWriter, errs map[string]string) {
	JSON(w, http.StatusOK, Envelope{
		"status":  "error",
		"message": "Validation Errors",
		"errors":  errs,
	})
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

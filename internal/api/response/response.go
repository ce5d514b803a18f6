// Package response provides the JSON response helpers shared by handlers
// and middleware.
package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already written; nothing sensible left to do.
			return
		}
	}
}

// Error writes an error response with a machine-readable code
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// ValidationError writes a 400 for malformed or missing input
func ValidationError(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "invalid_request", message)
}

// Unauthorized writes a 401 response
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	Error(w, http.StatusUnauthorized, "unauthorized", message)
}

// NotFound writes a 404 response
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	Error(w, http.StatusNotFound, "not_found", message)
}

// InternalError writes a 500 response
func InternalError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "An unexpected error occurred"
	}
	Error(w, http.StatusInternalServerError, "server_error", message)
}

// QuotaExceeded writes the distinguished over-limit payload so clients can
// route to the upgrade flow instead of a generic failure screen.
func QuotaExceeded(w http.ResponseWriter, usage, limit int) {
	JSON(w, http.StatusForbidden, map[string]interface{}{
		"error":   "quota_exceeded",
		"message": "Free tier limit reached. Upgrade to continue.",
		"usage":   usage,
		"limit":   limit,
	})
}

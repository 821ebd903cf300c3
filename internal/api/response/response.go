// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/pushgate/pushgate/internal/api/middleware"
	"github.com/pushgate/pushgate/internal/api/models"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Success writes a success envelope with the given status code.
func Success(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	JSON(w, r, status, models.NewSuccess(message, data))
}

// Error writes an error envelope with the given status code.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, r, status, models.NewError(message))
}

// BadRequest writes a 400 Bad Request error envelope.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, message)
}

// NotFound writes a 404 Not Found error envelope.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, message)
}

// MethodNotAllowed writes a 405 Method Not Allowed error envelope.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// TooManyRequests writes a 429 Too Many Requests error envelope.
func TooManyRequests(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusTooManyRequests, message)
}

// InternalError writes a 500 Internal Server Error envelope.
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusInternalServerError, message)
}

// BadGateway writes a 502 Bad Gateway error envelope for upstream failures.
func BadGateway(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadGateway, message)
}

// ServiceUnavailable writes a 503 Service Unavailable error envelope.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusServiceUnavailable, message)
}

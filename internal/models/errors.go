package models

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/toolbridge/toolbridge/internal/mcp"
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:  "error",
		Message: message,
		Code:    code,
	})
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// StatusForError maps bridge errors to HTTP status codes: a missing worker
// is 503, an unknown tool/resource/prompt is 404, a slow worker is 504.
func StatusForError(err error) int {
	var notConnected *mcp.NotConnectedError
	if errors.As(err, &notConnected) {
		return http.StatusServiceUnavailable
	}
	var notFound *mcp.ToolNotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	var timeout *mcp.TimeoutError
	if errors.As(err, &timeout) {
		return http.StatusGatewayTimeout
	}
	var connErr *mcp.ConnectionError
	if errors.As(err, &connErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

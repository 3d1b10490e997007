package api

import (
	"encoding/json"
	"net/http"

	"github.com/stream-indexer/internal/errors"
)

// errorBody is the error payload of every non-2xx response
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error errorBody `json:"error"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeRawJSON sends pre-encoded JSON bytes. Cached and freshly computed
// responses go through here so both serve identical bodies.
func writeRawJSON(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body) // nolint:errcheck // best effort
}

// respondError sends an explicit error response
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: errorBody{Code: code, Message: message}})
}

// respondServiceError maps a service error onto the wire. Categorized errors
// carry their own status and code; anything else becomes a 500 without
// leaking internals.
func respondServiceError(w http.ResponseWriter, err error) {
	categorized := errors.Categorize(err)
	message := categorized.Message
	if categorized.StatusCode >= http.StatusInternalServerError {
		message = "An internal error occurred"
	}
	respondError(w, categorized.StatusCode, categorized.Code, message)
}

// parseJSONBody parses a JSON request body, rejecting unknown fields
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Package errors defines the HTTP error envelope and the API error codes.
//
// Every non-2xx response carries the same JSON shape:
//
//	{"error": {"code": "...", "message": "...", "request_id": "...", "details": {...}}}
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
)

// API error codes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeServiceBusy      = "SERVICE_BUSY"
	CodeInternal         = "INTERNAL_ERROR"
)

// HTTPErrorResponse is the wire shape of an error response.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail is the inner error object.
type HTTPErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// StatusForCode maps an API error code to its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeServiceBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewEnvelope builds a structured error envelope for the given code and
// message, tagged with the request's correlation id when present.
func NewEnvelope(r *http.Request, code, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	if r != nil {
		if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
			envelope = envelope.WithCorrelationID(reqID)
		}
	}
	return envelope
}

// WriteError writes an error response for the given code. Details may be
// nil.
func WriteError(w http.ResponseWriter, r *http.Request, code, message string, details map[string]any) {
	resp := HTTPErrorResponse{Error: HTTPErrorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}}
	if r != nil {
		resp.Error.RequestID = r.Header.Get("X-Request-ID")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForCode(code))
	_ = json.NewEncoder(w).Encode(resp)
}

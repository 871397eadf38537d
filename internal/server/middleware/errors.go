// Package middleware provides the HTTP middleware chain: request ids,
// panic recovery, and CORS.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/triagekit/triagekit/internal/errors"
	"github.com/triagekit/triagekit/internal/observability"
)

// ErrorResponse is the JSON error envelope written by this package.
type ErrorResponse = apperrors.HTTPErrorResponse

// Recovery converts panics into INTERNAL_ERROR responses instead of
// tearing down the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			message := fmt.Sprintf("panic: %v", rec)
			observability.CLILogger.Error("request handler panicked",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Any("panic", rec))

			envelope := errors.NewErrorEnvelope(apperrors.CodeInternal, message)
			if reqID := GetRequestID(r.Context()); reqID != "" {
				envelope = envelope.WithCorrelationID(reqID)
			}
			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is an alias for Recovery kept for call sites that read
// better with this name.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

// writeErrorResponse serializes an error envelope with the given HTTP
// status.
func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	resp := ErrorResponse{Error: apperrors.HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		RequestID: envelope.CorrelationID,
		Details:   envelope.Context,
	}}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

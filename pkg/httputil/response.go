package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/youssefhesham2000/Catalog-Service/pkg/errors"
	"github.com/youssefhesham2000/Catalog-Service/pkg/logger"
	"github.com/youssefhesham2000/Catalog-Service/pkg/validator"
)

// ErrorBody is the standard JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
	Meta  ErrorMeta   `json:"meta"`
}

// ErrorDetail carries the machine-readable code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorMeta carries request context echoed back with every error.
type ErrorMeta struct {
	Timestamp     string `json:"timestamp"`
	Path          string `json:"path"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Timestamp returns the current UTC time in the ISO-8601 format used in
// response meta blocks.
func Timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// WriteJSON writes a JSON response with the given status code.
// If encoding fails, the error is logged but headers are already sent so nothing can be done.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardized error envelope based on the error type.
// It handles AppError and the sentinel errors, and logs internal server
// errors. It prefers the request-scoped logger from context (set by the
// RequestLogger middleware) over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	// Prefer the request-scoped logger (enriched with correlation_id,
	// trace_id, span_id) if the RequestLogger middleware has been mounted.
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	meta := ErrorMeta{
		Timestamp:     Timestamp(),
		Path:          r.URL.Path,
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "request failed",
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		WriteJSON(w, appErr.Status, ErrorBody{
			Error: ErrorDetail{Code: appErr.Code, Message: appErr.Message},
			Meta:  meta,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := apperrors.Code(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs; the client gets a generic message.
		message = "an internal error occurred"
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, ErrorBody{
		Error: ErrorDetail{Code: code, Message: message},
		Meta:  meta,
	})
}

// WriteValidationError writes a standardized validation error envelope.
// It handles ValidationError from the validator package and returns
// field-level errors in the details block.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	meta := ErrorMeta{
		Timestamp:     Timestamp(),
		Path:          r.URL.Path,
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, ErrorBody{
			Error: ErrorDetail{
				Code:    "BAD_REQUEST",
				Message: "request validation failed",
				Details: valErr.Fields(),
			},
			Meta: meta,
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, ErrorBody{
		Error: ErrorDetail{Code: "BAD_REQUEST", Message: err.Error()},
		Meta:  meta,
	})
}

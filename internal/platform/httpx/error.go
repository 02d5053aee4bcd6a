// Package httpx renders the API's JSON responses and error envelope.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/shopmart/api/internal/platform/requestctx"
)

// CodeValidationFailed is the error code for payloads rejected field by field.
const CodeValidationFailed = "validation_failed"

// FieldDetail names one rejected input field.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the canonical error envelope:
// {error, message, status, request_id, trace_id, details}.
type Error struct {
	Code    string
	Message string
	Status  int
	Details []FieldDetail
}

// NewError constructs an Error, defaulting the status to 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// ValidationFailed builds the 400 envelope carrying per-field messages.
func ValidationFailed(fields ...FieldDetail) Error {
	return NewError(CodeValidationFailed, "validation failed", http.StatusBadRequest).WithFields(fields...)
}

// WithFields attaches field details, dropping entries without a field name.
func (e Error) WithFields(fields ...FieldDetail) Error {
	out := make([]FieldDetail, 0, len(fields))
	for _, f := range fields {
		name := sanitize(f.Field, 80)
		if name == "" {
			continue
		}
		out = append(out, FieldDetail{Field: name, Message: sanitize(f.Message, 256)})
	}
	if len(out) == 0 {
		return e
	}
	e.Details = out
	return e
}

type errorPayload struct {
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	Status    int           `json:"status"`
	RequestID string        `json:"request_id,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
	Details   []FieldDetail `json:"details,omitempty"`
}

// WriteError writes the envelope, filling request and trace IDs from ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, errorPayload{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: sanitize(middleware.GetReqID(ctx), 80),
		TraceID:   sanitize(requestctx.TraceID(ctx), 64),
		Details:   err.Details,
	})
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sanitize(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}

// Package httpx carries the JSON error envelope shared by every handler.
// All error responses have the shape {"error": code, "message": ..., "status": n}
// plus request/trace correlation fields when the request context carries them.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bloom-bouquet/api/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxTraceLen   = 64
)

// Error is an API error envelope. Zero Status renders as 500.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an envelope with the given machine-readable code,
// human-readable message, and HTTP status.
func NewError(code, message string, status int) Error {
	return Error{
		Code:    clip(code, maxCodeLen),
		Message: clip(message, maxMessageLen),
		Status:  status,
	}
}

// WithRequestID overrides the request identifier derived from the context.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = clip(id, maxCodeLen)
	return e
}

// WithTraceID overrides the trace identifier derived from the context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = clip(id, maxTraceLen)
	return e
}

// WithDetails merges extra fields into the top level of the rendered
// envelope. Reserved keys (error, message, status) are not overridable.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

func (e Error) render(ctx context.Context) (int, map[string]any) {
	status := e.Status
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}

	payload := make(map[string]any, 5+len(e.Details))
	for k, v := range e.Details {
		switch k {
		case "error", "message", "status":
		default:
			payload[k] = v
		}
	}
	payload["error"] = e.Code
	payload["message"] = e.Message
	payload["status"] = status

	if id := firstNonEmpty(e.RequestID, middleware.GetReqID(ctx)); id != "" {
		payload["request_id"] = clip(id, maxCodeLen)
	}
	if id := firstNonEmpty(e.TraceID, requestctx.TraceID(ctx)); id != "" {
		payload["trace_id"] = clip(id, maxTraceLen)
	}
	return status, payload
}

// WriteError renders the envelope to w, filling in request and trace
// identifiers from ctx when not set explicitly.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status, payload := err.render(ctx)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clip(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}

package apierr

import (
	"context"
	"errors"
	"net/http"

	"github.com/segmentio/encoding/json"

	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// LAYOUT_ - Layout computation errors
	ErrLayoutEmptyGraph    ErrorCode = "LAYOUT_EMPTY_GRAPH"
	ErrLayoutInvalidGraph  ErrorCode = "LAYOUT_INVALID_GRAPH"
	ErrLayoutInvalidParams ErrorCode = "LAYOUT_INVALID_PARAMS"
	ErrLayoutTooLarge      ErrorCode = "LAYOUT_TOO_LARGE"
	ErrLayoutTimeout       ErrorCode = "LAYOUT_TIMEOUT"
	ErrLayoutFailed        ErrorCode = "LAYOUT_FAILED"
	ErrLayoutNoData        ErrorCode = "LAYOUT_NO_DATA"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemDatabase    ErrorCode = "SYSTEM_DATABASE"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON        ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationInvalidContentType ErrorCode = "VALIDATION_INVALID_CONTENT_TYPE"
	ErrValidationBodyTooLarge       ErrorCode = "VALIDATION_BODY_TOO_LARGE"
	ErrValidationInvalidValue       ErrorCode = "VALIDATION_INVALID_VALUE"

	// RESOURCE_ - Resource errors
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: err}); encErr != nil {
		logger.Warn("failed to write error response", "code", err.Code, "error", encErr)
	}
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	return logger.RequestIDFromContext(ctx)
}

// FromLayoutError maps an error returned by the graph package to the API
// error a client should see. Unknown errors become SYSTEM_INTERNAL without
// leaking their text.
func FromLayoutError(err error) *Error {
	switch {
	case errors.Is(err, graph.ErrEmptyGraph):
		return New(ErrLayoutEmptyGraph, "Graph has no nodes", http.StatusBadRequest)
	case errors.Is(err, graph.ErrInvalidGraph):
		return New(ErrLayoutInvalidGraph, err.Error(), http.StatusBadRequest)
	case errors.Is(err, graph.ErrInvalidParams):
		return New(ErrLayoutInvalidParams, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		return LayoutTimeout()
	case errors.Is(err, context.Canceled):
		return New(ErrLayoutFailed, "Layout canceled", http.StatusServiceUnavailable)
	default:
		return SystemInternal("")
	}
}

// LayoutTooLarge rejects graphs above the configured node limit.
func LayoutTooLarge(nodes, limit int) *Error {
	return New(ErrLayoutTooLarge, "Graph exceeds the node limit", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]interface{}{"nodes": nodes, "limit": limit})
}

func LayoutTimeout() *Error {
	return New(ErrLayoutTimeout, "Layout timed out - try fewer iterations or a larger theta", http.StatusRequestTimeout)
}

func LayoutNoData() *Error {
	return New(ErrLayoutNoData, "No stored layout available", http.StatusNotFound)
}

func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

func SystemDatabase(message string) *Error {
	if message == "" {
		message = "Database error"
	}
	return New(ErrSystemDatabase, message, http.StatusInternalServerError)
}

func SystemUnavailable(message string) *Error {
	if message == "" {
		message = "Service unavailable"
	}
	return New(ErrSystemUnavailable, message, http.StatusServiceUnavailable)
}

func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

func ValidationInvalidContentType() *Error {
	return New(ErrValidationInvalidContentType, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
}

func ValidationBodyTooLarge(limit int64) *Error {
	return New(ErrValidationBodyTooLarge, "Request body too large", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]interface{}{"limit_bytes": limit})
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

func ResourceNotFound(resourceType string) *Error {
	return New(ErrResourceNotFound, resourceType+" not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"resource_type": resourceType})
}

func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// Package apierr defines the closed error taxonomy shared by every component
// and the client-facing ErrorResponse shape.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code identifies one member of the closed error taxonomy.
type Code string

const (
	CodeAuthFailed          Code = "AUTH_FAILED"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeExecutorUnavailable Code = "EXECUTOR_UNAVAILABLE"
	CodeExecutionError      Code = "EXECUTION_ERROR"
	CodeTimeout             Code = "TIMEOUT"
	CodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeConfigError         Code = "CONFIG_ERROR"
)

// HTTPStatus maps an error code to its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeAuthFailed:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeExecutorUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeSessionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a taxonomy error. It carries the code, a client-safe message and
// optionally the session it relates to.
type Error struct {
	Code       Code
	Message    string
	SessionID  string
	RetryAfter int // seconds; only set for RATE_LIMITED
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a taxonomy error.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithSession attaches a session ID to the error.
func (e *Error) WithSession(id string) *Error {
	e.SessionID = id
	return e
}

// RateLimited creates a RATE_LIMITED error carrying the retry hint.
func RateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "Rate limit exceeded. Please slow down.",
		RetryAfter: retryAfterSeconds,
	}
}

// CodeOf extracts the taxonomy code from err, defaulting to INTERNAL_ERROR
// for errors produced outside the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ErrorResponse is the JSON body returned for any non-stream failure.
type ErrorResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	SessionID         string `json:"session_id,omitempty"`
	Timestamp         string `json:"timestamp"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// Response builds the wire body for err.
func Response(err error) ErrorResponse {
	resp := ErrorResponse{
		Code:      string(CodeInternal),
		Message:   "an unexpected error occurred",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var e *Error
	if errors.As(err, &e) {
		resp.Code = string(e.Code)
		resp.Message = e.Message
		resp.SessionID = e.SessionID
		resp.RetryAfterSeconds = e.RetryAfter
	}
	return resp
}

package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeAuthFailed, http.StatusUnauthorized},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeInvalidRequest, http.StatusBadRequest},
		{CodeExecutorUnavailable, http.StatusServiceUnavailable},
		{CodeExecutionError, http.StatusInternalServerError},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeInternal, http.StatusInternalServerError},
		{CodeConfigError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	err := New(CodeTimeout, "took too long")
	if CodeOf(err) != CodeTimeout {
		t.Errorf("CodeOf = %s", CodeOf(err))
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if CodeOf(wrapped) != CodeTimeout {
		t.Errorf("CodeOf(wrapped) = %s", CodeOf(wrapped))
	}

	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Error("plain errors must default to INTERNAL_ERROR")
	}
}

func TestResponse(t *testing.T) {
	err := New(CodeSessionNotFound, "Session %s not found", "abc").WithSession("abc")
	resp := Response(err)

	if resp.Code != "SESSION_NOT_FOUND" {
		t.Errorf("code = %q", resp.Code)
	}
	if resp.Message != "Session abc not found" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.SessionID != "abc" {
		t.Errorf("session_id = %q", resp.SessionID)
	}
	if resp.Timestamp == "" {
		t.Error("timestamp not set")
	}
}

func TestRateLimitedResponse(t *testing.T) {
	resp := Response(RateLimited(60))

	if resp.Code != "RATE_LIMITED" {
		t.Errorf("code = %q", resp.Code)
	}
	if resp.RetryAfterSeconds != 60 {
		t.Errorf("retry_after_seconds = %d", resp.RetryAfterSeconds)
	}
}

func TestResponseForPlainError(t *testing.T) {
	resp := Response(errors.New("disk on fire"))

	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", resp.Code)
	}
	// Internal details must not leak into the client-facing body.
	if resp.Message == "disk on fire" {
		t.Error("raw error message leaked to client")
	}
}

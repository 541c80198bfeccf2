// Package executor runs automation requests against a headless agent CLI
// and turns its line-delimited output into a typed event stream.
package executor

import (
	"context"

	"github.com/coppice-labs/switchboard/internal/request"
)

// EventType identifies one kind of streamed event.
type EventType string

const (
	EventContent  EventType = "content"
	EventToolUse  EventType = "tool_use"
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Event is one item on the execution stream. Which fields are set depends
// on Type.
type Event struct {
	Type EventType `json:"type"`

	// content
	Text string `json:"text,omitempty"`

	// tool_use
	Tool       string                 `json:"tool,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// progress; Percent is a pointer so that a reported 0 still reaches the
	// wire while non-progress events omit the field entirely
	Message string `json:"message,omitempty"`
	Percent *int   `json:"percent,omitempty"`

	// error
	Code string `json:"code,omitempty"`

	// complete
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status,omitempty"` // "success" or "failed"
}

// Completion statuses carried by the final complete event.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

func pct(n int) *int { return &n }

// Executor runs one request and streams events back. Execute returns an
// error only when the execution could not start at all; failures after
// startup arrive as error events followed by a complete event with status
// failed. The returned channel is closed after the complete event.
type Executor interface {
	Execute(ctx context.Context, req *request.ExecutionRequest) (<-chan Event, error)
	Ping(ctx context.Context) error
	Name() string
}

package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/coppice-labs/switchboard/internal/request"
)

// MockExecutor emits a canned event sequence without spawning anything.
// Used in development mode and tests.
type MockExecutor struct {
	// Delay between events. Zero means no delay.
	Delay time.Duration
	// Fail makes the run end with an error event and a failed completion.
	Fail bool
}

var _ Executor = (*MockExecutor)(nil)

// NewMockExecutor creates a mock with the given inter-event delay.
func NewMockExecutor(delay time.Duration) *MockExecutor {
	return &MockExecutor{Delay: delay}
}

func (m *MockExecutor) Name() string {
	return "mock"
}

func (m *MockExecutor) Ping(ctx context.Context) error {
	return nil
}

// Execute streams the canned sequence, honoring ctx cancellation between
// events.
func (m *MockExecutor) Execute(ctx context.Context, req *request.ExecutionRequest) (<-chan Event, error) {
	var seq []Event
	if m.Fail {
		seq = []Event{
			{Type: EventProgress, Message: "Analyzing context", Percent: pct(10)},
			{Type: EventError, Code: "EXECUTION_ERROR", Message: "mock failure"},
			{Type: EventComplete, SessionID: req.SessionID, Status: StatusFailed},
		}
	} else {
		seq = []Event{
			{Type: EventContent, Text: fmt.Sprintf("Working on: %s", req.Context.UserIntent)},
			{Type: EventProgress, Message: "Analyzing context", Percent: pct(25)},
			{Type: EventToolUse, Tool: "click", Parameters: map[string]interface{}{"selector": "#submit"}},
			{Type: EventContent, Text: "Done."},
			{Type: EventComplete, SessionID: req.SessionID, Status: StatusSuccess},
		}
	}

	events := make(chan Event, len(seq))
	go func() {
		defer close(events)
		for _, ev := range seq {
			if m.Delay > 0 {
				select {
				case <-time.After(m.Delay):
				case <-ctx.Done():
					events <- Event{Type: EventComplete, SessionID: req.SessionID, Status: StatusFailed}
					return
				}
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// Package session tracks the lifecycle of execution sessions and enforces
// the concurrency ceiling.
package session

import "time"

// State is the lifecycle state of a session.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final. Terminal states never
// transition again.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Info is a snapshot of one session's lifecycle.
type Info struct {
	ID          string     `json:"session_id"`
	State       State      `json:"state"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

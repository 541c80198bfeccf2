package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coppice-labs/switchboard/internal/apierr"
	"github.com/coppice-labs/switchboard/internal/logger"
	"github.com/coppice-labs/switchboard/internal/metrics"
)

// Manager tracks every session the server knows about and bounds how many
// may run at once. All methods are safe for concurrent use.
type Manager struct {
	mu            sync.Mutex
	sessions      map[string]*Info
	maxConcurrent int
	maxHistory    int
	now           func() time.Time // overridable for tests
}

// NewManager creates a session manager with the given concurrency ceiling
// and history retention.
func NewManager(maxConcurrent, maxHistory int) *Manager {
	return &Manager{
		sessions:      make(map[string]*Info),
		maxConcurrent: maxConcurrent,
		maxHistory:    maxHistory,
		now:           time.Now,
	}
}

// NewID generates a fresh session identifier.
func NewID() string {
	return uuid.New().String()
}

// Register admits a new session in the Running state. When the number of
// running sessions is already at the ceiling it refuses with
// EXECUTOR_UNAVAILABLE; nothing is recorded in that case.
func (m *Manager) Register(id string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[id]; ok {
		return nil, apierr.New(apierr.CodeInvalidRequest,
			"Session %s already exists in state %s", id, existing.State).WithSession(id)
	}

	if m.runningLocked() >= m.maxConcurrent {
		return nil, apierr.New(apierr.CodeExecutorUnavailable,
			"Maximum concurrent sessions reached (%d)", m.maxConcurrent)
	}

	info := &Info{
		ID:        id,
		State:     StateRunning,
		StartedAt: m.now(),
	}
	m.sessions[id] = info
	metrics.RecordSessionStart()
	logger.Info("Session %s registered", id)

	return snapshot(info), nil
}

// Complete moves a running session to Completed. A session already in a
// terminal state stays where it is; completion never resurrects a failure.
func (m *Manager) Complete(id string) error {
	return m.finish(id, StateCompleted, "")
}

// Fail moves a running session to Failed and records the error message.
func (m *Manager) Fail(id string, errMsg string) error {
	return m.finish(id, StateFailed, errMsg)
}

func (m *Manager) finish(id string, state State, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[id]
	if !ok {
		return apierr.New(apierr.CodeSessionNotFound, "Session %s not found", id).WithSession(id)
	}
	if info.State.Terminal() {
		return nil
	}

	m.terminateLocked(info, state, errMsg)
	return nil
}

// Cancel moves a running session to Cancelled. Only Running sessions may be
// cancelled; a terminal session yields INVALID_REQUEST and keeps its state.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[id]
	if !ok {
		return apierr.New(apierr.CodeSessionNotFound, "Session %s not found", id).WithSession(id)
	}
	if info.State != StateRunning {
		return apierr.New(apierr.CodeInvalidRequest,
			"Session %s is %s and cannot be cancelled", id, info.State).WithSession(id)
	}

	m.terminateLocked(info, StateCancelled, "")
	return nil
}

func (m *Manager) terminateLocked(info *Info, state State, errMsg string) {
	now := m.now()
	info.State = state
	info.CompletedAt = &now
	info.Error = errMsg

	metrics.RecordSessionEnd(string(state), now.Sub(info.StartedAt).Seconds())
	logger.Info("Session %s -> %s", info.ID, state)
}

// Get returns a snapshot of one session.
func (m *Manager) Get(id string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[id]
	if !ok {
		return nil, apierr.New(apierr.CodeSessionNotFound, "Session %s not found", id).WithSession(id)
	}
	return snapshot(info), nil
}

// List returns snapshots of every known session, newest first.
func (m *Manager) List() []*Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Info, 0, len(m.sessions))
	for _, info := range m.sessions {
		out = append(out, snapshot(info))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// RunningCount returns the number of sessions currently running.
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningLocked()
}

func (m *Manager) runningLocked() int {
	n := 0
	for _, info := range m.sessions {
		if info.State == StateRunning {
			n++
		}
	}
	return n
}

// Cleanup evicts terminal sessions beyond maxHistory, oldest completion
// first, and returns how many were removed. Running sessions are never
// evicted.
func (m *Manager) Cleanup(maxHistory int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var terminal []*Info
	for _, info := range m.sessions {
		if info.State.Terminal() {
			terminal = append(terminal, info)
		}
	}
	if len(terminal) <= maxHistory {
		return 0
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CompletedAt.Before(*terminal[j].CompletedAt)
	})

	evict := terminal[:len(terminal)-maxHistory]
	for _, info := range evict {
		delete(m.sessions, info.ID)
	}
	if len(evict) > 0 {
		logger.Info("Session cleanup evicted %d of %d terminal sessions", len(evict), len(terminal))
	}
	return len(evict)
}

func snapshot(info *Info) *Info {
	cp := *info
	if info.CompletedAt != nil {
		t := *info.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

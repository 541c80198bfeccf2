package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/coppice-labs/switchboard/internal/apierr"
)

func TestRegisterAndGet(t *testing.T) {
	m := NewManager(5, 100)

	info, err := m.Register("s1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if info.State != StateRunning {
		t.Errorf("expected state running, got %s", info.State)
	}
	if info.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}

	got, err := m.Get("s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "s1" || got.State != StateRunning {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestGetUnknownSession(t *testing.T) {
	m := NewManager(5, 100)

	_, err := m.Get("nope")
	if err == nil {
		t.Fatal("expected error for unknown session")
	}
	if apierr.CodeOf(err) != apierr.CodeSessionNotFound {
		t.Errorf("expected SESSION_NOT_FOUND, got %s", apierr.CodeOf(err))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	m := NewManager(5, 100)

	if _, err := m.Register("dup"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := m.Register("dup")
	if err == nil {
		t.Fatal("expected error for duplicate session")
	}
	if apierr.CodeOf(err) != apierr.CodeInvalidRequest {
		t.Errorf("expected INVALID_REQUEST, got %s", apierr.CodeOf(err))
	}
}

func TestCapacityCeiling(t *testing.T) {
	m := NewManager(3, 100)

	for i := 0; i < 3; i++ {
		if _, err := m.Register(fmt.Sprintf("s%d", i)); err != nil {
			t.Fatalf("Register %d failed: %v", i, err)
		}
	}

	_, err := m.Register("overflow")
	if err == nil {
		t.Fatal("expected capacity error")
	}
	if apierr.CodeOf(err) != apierr.CodeExecutorUnavailable {
		t.Errorf("expected EXECUTOR_UNAVAILABLE, got %s", apierr.CodeOf(err))
	}
	if _, getErr := m.Get("overflow"); getErr == nil {
		t.Error("refused session must not be recorded")
	}

	// A terminal session frees a slot.
	if err := m.Complete("s0"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := m.Register("s3"); err != nil {
		t.Errorf("Register after slot freed failed: %v", err)
	}
}

func TestCompleteAndFail(t *testing.T) {
	m := NewManager(5, 100)

	m.Register("ok")
	if err := m.Complete("ok"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	info, _ := m.Get("ok")
	if info.State != StateCompleted {
		t.Errorf("expected completed, got %s", info.State)
	}
	if info.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	m.Register("bad")
	if err := m.Fail("bad", "executor exploded"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	info, _ = m.Get("bad")
	if info.State != StateFailed {
		t.Errorf("expected failed, got %s", info.State)
	}
	if info.Error != "executor exploded" {
		t.Errorf("expected error message preserved, got %q", info.Error)
	}
}

func TestTerminalStatesAreSticky(t *testing.T) {
	m := NewManager(5, 100)

	m.Register("s1")
	m.Fail("s1", "boom")

	// Complete on a failed session is a no-op, not a resurrection.
	if err := m.Complete("s1"); err != nil {
		t.Fatalf("Complete on terminal session returned error: %v", err)
	}
	info, _ := m.Get("s1")
	if info.State != StateFailed {
		t.Errorf("terminal state changed: got %s", info.State)
	}
	if info.Error != "boom" {
		t.Errorf("error message lost: got %q", info.Error)
	}
}

func TestCancel(t *testing.T) {
	m := NewManager(5, 100)

	m.Register("s1")
	if err := m.Cancel("s1"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	info, _ := m.Get("s1")
	if info.State != StateCancelled {
		t.Errorf("expected cancelled, got %s", info.State)
	}

	// Cancelling a terminal session is an invalid transition.
	err := m.Cancel("s1")
	if err == nil {
		t.Fatal("expected error cancelling terminal session")
	}
	if apierr.CodeOf(err) != apierr.CodeInvalidRequest {
		t.Errorf("expected INVALID_REQUEST, got %s", apierr.CodeOf(err))
	}
	info, _ = m.Get("s1")
	if info.State != StateCancelled {
		t.Errorf("state changed by rejected cancel: got %s", info.State)
	}
}

func TestCancelCompletedSession(t *testing.T) {
	m := NewManager(5, 100)

	m.Register("s1")
	m.Complete("s1")

	err := m.Cancel("s1")
	if apierr.CodeOf(err) != apierr.CodeInvalidRequest {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
	info, _ := m.Get("s1")
	if info.State != StateCompleted {
		t.Errorf("completed state must survive rejected cancel, got %s", info.State)
	}
}

func TestCancelUnknownSession(t *testing.T) {
	m := NewManager(5, 100)

	err := m.Cancel("missing")
	if apierr.CodeOf(err) != apierr.CodeSessionNotFound {
		t.Errorf("expected SESSION_NOT_FOUND, got %v", err)
	}
}

func TestCleanupEvictsOldestTerminal(t *testing.T) {
	m := NewManager(10, 100)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	// Five completed sessions with staggered completion times.
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		m.Register(id)
		clock = clock.Add(time.Minute)
		m.Complete(id)
	}
	// One running session that must survive.
	m.Register("live")

	removed := m.Cleanup(2)
	if removed != 3 {
		t.Fatalf("expected 3 evicted, got %d", removed)
	}

	// Oldest three gone, newest two kept.
	for _, id := range []string{"s0", "s1", "s2"} {
		if _, err := m.Get(id); err == nil {
			t.Errorf("session %s should have been evicted", id)
		}
	}
	for _, id := range []string{"s3", "s4", "live"} {
		if _, err := m.Get(id); err != nil {
			t.Errorf("session %s should have survived: %v", id, err)
		}
	}
}

func TestCleanupNeverEvictsRunning(t *testing.T) {
	m := NewManager(10, 100)

	for i := 0; i < 4; i++ {
		m.Register(fmt.Sprintf("run%d", i))
	}
	if removed := m.Cleanup(0); removed != 0 {
		t.Errorf("running sessions evicted: %d", removed)
	}
	if m.RunningCount() != 4 {
		t.Errorf("expected 4 running, got %d", m.RunningCount())
	}
}

func TestCleanupUnderLimit(t *testing.T) {
	m := NewManager(10, 100)

	m.Register("s1")
	m.Complete("s1")

	if removed := m.Cleanup(5); removed != 0 {
		t.Errorf("expected no eviction under limit, got %d", removed)
	}
}

func TestListNewestFirst(t *testing.T) {
	m := NewManager(10, 100)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.Register("old")
	clock = clock.Add(time.Hour)
	m.Register("new")

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != "new" || list[1].ID != "old" {
		t.Errorf("unexpected order: %s, %s", list[0].ID, list[1].ID)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	m := NewManager(5, 100)

	m.Register("s1")
	info, _ := m.Get("s1")
	info.State = StateFailed // mutating the copy must not leak back

	fresh, _ := m.Get("s1")
	if fresh.State != StateRunning {
		t.Errorf("snapshot mutation leaked into manager state: %s", fresh.State)
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}

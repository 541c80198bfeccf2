package cleanup

import (
	"fmt"
	"testing"

	"github.com/coppice-labs/switchboard/internal/auth"
	"github.com/coppice-labs/switchboard/internal/session"
)

func TestRunEvictsAndPrunes(t *testing.T) {
	manager := session.NewManager(10, 100)
	limiter := auth.NewRateLimiter(100)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		manager.Register(id)
		manager.Complete(id)
	}

	c := New(manager, limiter, 2)
	c.Run()

	kept := 0
	for i := 0; i < 5; i++ {
		if _, err := manager.Get(fmt.Sprintf("s%d", i)); err == nil {
			kept++
		}
	}
	if kept != 2 {
		t.Errorf("expected 2 sessions retained, got %d", kept)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	c := New(session.NewManager(10, 100), auth.NewRateLimiter(100), 10)
	if err := c.Start("not a cron expression"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestStartStop(t *testing.T) {
	c := New(session.NewManager(10, 100), auth.NewRateLimiter(100), 10)
	if err := c.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	c.Stop()
}

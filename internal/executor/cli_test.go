package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coppice-labs/switchboard/internal/apierr"
)

func writeFakeCLI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-cli")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write fake cli: %v", err)
	}
	return path
}

func TestCLIExecutorNonZeroExit(t *testing.T) {
	cli := writeFakeCLI(t, `echo '{"type":"content","text":"partial"}'
exit 3
`)
	e := NewCLIExecutor(cli, 2*time.Second)

	ch, err := e.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	events := collect(t, ch)
	if len(events) < 3 {
		t.Fatalf("expected content, error and complete, got %+v", events)
	}

	if events[0].Type != EventContent || events[0].Text != "partial" {
		t.Errorf("first event = %+v, want content %q", events[0], "partial")
	}

	var errEv *Event
	for i := range events {
		if events[i].Type == EventError {
			errEv = &events[i]
		}
	}
	if errEv == nil {
		t.Fatal("expected an error event for the non-zero exit")
	}
	if errEv.Code != string(apierr.CodeExecutionError) {
		t.Errorf("error code = %q, want %s", errEv.Code, apierr.CodeExecutionError)
	}
	if !strings.Contains(errEv.Message, "exited with code 3") {
		t.Errorf("error message should carry the exit code, got %q", errEv.Message)
	}

	last := events[len(events)-1]
	if last.Type != EventComplete || last.Status != StatusFailed {
		t.Errorf("expected failed completion, got %+v", last)
	}
	if last.SessionID != "test-session" {
		t.Errorf("complete event must echo the session id, got %q", last.SessionID)
	}
}

func TestCLIExecutorSilenceTimeout(t *testing.T) {
	cli := writeFakeCLI(t, `echo '{"type":"content","text":"one"}'
exec sleep 10
`)
	e := NewCLIExecutor(cli, 500*time.Millisecond)

	ch, err := e.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	events := collect(t, ch)

	var errEv *Event
	for i := range events {
		if events[i].Type == EventError {
			errEv = &events[i]
		}
	}
	if errEv == nil {
		t.Fatalf("expected a timeout error event, got %+v", events)
	}
	if errEv.Code != string(apierr.CodeTimeout) {
		t.Errorf("error code = %q, want %s", errEv.Code, apierr.CodeTimeout)
	}
	if !strings.Contains(errEv.Message, "no output for") {
		t.Errorf("error message should name the silence window, got %q", errEv.Message)
	}

	last := events[len(events)-1]
	if last.Type != EventComplete || last.Status != StatusFailed {
		t.Errorf("expected failed completion after silence, got %+v", last)
	}
}

func TestCLIExecutorSpawnFailure(t *testing.T) {
	e := NewCLIExecutor(filepath.Join(t.TempDir(), "missing-binary"), time.Second)

	ch, err := e.Execute(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected spawn failure to return an error")
	}
	if ch != nil {
		t.Error("no stream should be returned on spawn failure")
	}
	if code := apierr.CodeOf(err); code != apierr.CodeExecutorUnavailable {
		t.Errorf("error code = %s, want %s", code, apierr.CodeExecutorUnavailable)
	}
}

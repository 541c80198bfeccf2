package executor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/coppice-labs/switchboard/internal/apierr"
	"github.com/coppice-labs/switchboard/internal/logger"
	"github.com/coppice-labs/switchboard/internal/request"
)

const (
	// DefaultLineTimeout is how long the CLI may stay silent between output
	// lines before the execution is aborted.
	DefaultLineTimeout = 5 * time.Second

	maxScanTokenSize = 1024 * 1024
	eventBufferSize  = 100
)

// CLIExecutor runs requests by spawning the agent CLI as a subprocess and
// reading its line-delimited JSON output.
type CLIExecutor struct {
	cliPath     string
	lineTimeout time.Duration
}

var _ Executor = (*CLIExecutor)(nil)

// NewCLIExecutor creates an executor for the CLI at cliPath. A zero
// lineTimeout falls back to DefaultLineTimeout.
func NewCLIExecutor(cliPath string, lineTimeout time.Duration) *CLIExecutor {
	if lineTimeout <= 0 {
		lineTimeout = DefaultLineTimeout
	}
	return &CLIExecutor{cliPath: cliPath, lineTimeout: lineTimeout}
}

// Name returns the executor identifier.
func (e *CLIExecutor) Name() string {
	return "cli"
}

// Ping checks that the CLI binary is resolvable.
func (e *CLIExecutor) Ping(ctx context.Context) error {
	if _, err := exec.LookPath(e.cliPath); err != nil {
		return apierr.New(apierr.CodeExecutorUnavailable, "Agent CLI %q not found", e.cliPath)
	}
	return nil
}

// Execute spawns the CLI and streams its output as events. The overall
// deadline comes from the request options; per-line silence is bounded by
// the executor's line timeout. Spawn failures are returned directly; every
// failure after startup arrives on the stream.
func (e *CLIExecutor) Execute(ctx context.Context, req *request.ExecutionRequest) (<-chan Event, error) {
	timeout := time.Duration(req.Options.TimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)

	cmd := exec.CommandContext(runCtx, e.cliPath,
		"-p", BuildPrompt(req),
		"--output-format", "stream-json",
	)
	if req.Options.MaxOutputTokens > 0 {
		cmd.Args = append(cmd.Args, "--max-output-tokens", fmt.Sprintf("%d", req.Options.MaxOutputTokens))
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, apierr.New(apierr.CodeExecutorUnavailable, "Failed to attach to agent CLI: %v", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		cancel()
		logger.Error("Failed to spawn agent CLI %q: %v", e.cliPath, err)
		return nil, apierr.New(apierr.CodeExecutorUnavailable, "Failed to start agent CLI").WithSession(req.SessionID)
	}

	logger.Info("Session %s: spawned agent CLI (pid %d, timeout %s)", req.SessionID, cmd.Process.Pid, timeout)

	lines := make(chan string, eventBufferSize)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				select {
				case lines <- line:
				case <-runCtx.Done():
					return
				}
			}
		}
	}()

	events := make(chan Event, eventBufferSize)
	go e.run(runCtx, cancel, cmd, req.SessionID, lines, events)

	return events, nil
}

// run drains the line channel into events, enforcing the per-line silence
// timeout and the overall deadline, then reports the terminal outcome.
func (e *CLIExecutor) run(ctx context.Context, cancel context.CancelFunc, cmd *exec.Cmd, sessionID string, lines <-chan string, events chan<- Event) {
	defer close(events)
	defer cancel()

	silence := time.NewTimer(e.lineTimeout)
	defer silence.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				e.finish(ctx, cmd, sessionID, events)
				return
			}
			if !silence.Stop() {
				<-silence.C
			}
			silence.Reset(e.lineTimeout)
			send(ctx, events, parseLine(line))

		case <-silence.C:
			logger.Error("Session %s: agent CLI silent for %s, killing", sessionID, e.lineTimeout)
			cancel()
			_ = cmd.Wait()
			send(ctx, events, Event{Type: EventError, Code: string(apierr.CodeTimeout),
				Message: fmt.Sprintf("Agent produced no output for %s", e.lineTimeout)})
			send(ctx, events, Event{Type: EventComplete, SessionID: sessionID, Status: StatusFailed})
			return

		case <-ctx.Done():
			logger.Error("Session %s: execution deadline exceeded, killing", sessionID)
			_ = cmd.Wait()
			send(ctx, events, Event{Type: EventError, Code: string(apierr.CodeTimeout),
				Message: "Execution timed out"})
			send(ctx, events, Event{Type: EventComplete, SessionID: sessionID, Status: StatusFailed})
			return
		}
	}
}

// send forwards ev to the consumer. Once the context is cancelled the
// consumer may have stopped draining, so the send turns best-effort rather
// than blocking forever.
func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
		select {
		case events <- ev:
		default:
		}
	}
}

// finish waits for the process and emits the terminal events based on its
// exit code.
func (e *CLIExecutor) finish(ctx context.Context, cmd *exec.Cmd, sessionID string, events chan<- Event) {
	err := cmd.Wait()
	if err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		logger.Error("Session %s: agent CLI exited with code %d: %v", sessionID, code, err)
		// The wait error can carry paths or environment details; clients only
		// see the sanitized form.
		safe := apierr.Sanitize(err, "execution")
		send(ctx, events, Event{Type: EventError, Code: string(apierr.CodeExecutionError),
			Message: fmt.Sprintf("Agent CLI exited with code %d: %v", code, safe)})
		send(ctx, events, Event{Type: EventComplete, SessionID: sessionID, Status: StatusFailed})
		return
	}

	send(ctx, events, Event{Type: EventComplete, SessionID: sessionID, Status: StatusSuccess})
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coppice-labs/switchboard/internal/apierr"
	"github.com/coppice-labs/switchboard/internal/executor"
	"github.com/coppice-labs/switchboard/internal/logger"
	"github.com/coppice-labs/switchboard/internal/metrics"
)

// heartbeatInterval is how often a comment line is written while the
// executor is between events, so proxies keep the connection open.
const heartbeatInterval = 15 * time.Second

// streamEvents forwards executor events to the client as server-sent
// events. The session's terminal state is recorded from the stream itself:
// the complete event's status decides between Completed and Failed, and a
// broken client connection fails the session.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, sessionID string, events <-chan executor.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("Session %s: response writer does not support streaming", sessionID)
		_ = s.manager.Fail(sessionID, "streaming unsupported by connection")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	terminal := false

	for {
		select {
		case ev, open := <-events:
			if !open {
				if !terminal {
					// Stream ended without a complete event.
					_ = s.manager.Fail(sessionID, "event stream ended unexpectedly")
				}
				return
			}

			if err := writeSSE(w, ev); err != nil {
				logger.Error("Session %s: client write failed: %v", sessionID, err)
				// Best effort: tell the client before giving up.
				_ = writeSSE(w, executor.Event{
					Type:    executor.EventError,
					Code:    string(apierr.CodeInternal),
					Message: "event delivery failed",
				})
				_ = s.manager.Fail(sessionID, "client connection lost")
				return
			}
			flusher.Flush()
			metrics.RecordEventStreamed(string(ev.Type))

			switch ev.Type {
			case executor.EventError:
				// Error events mark the session failed immediately; the
				// trailing complete event cannot resurrect it.
				terminal = true
				_ = s.manager.Fail(sessionID, ev.Message)
			case executor.EventComplete:
				terminal = true
				if ev.Status == executor.StatusSuccess {
					_ = s.manager.Complete(sessionID)
				} else {
					_ = s.manager.Fail(sessionID, "")
				}
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				_ = s.manager.Fail(sessionID, "client connection lost")
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			logger.Info("Session %s: client disconnected", sessionID)
			if !terminal {
				_ = s.manager.Fail(sessionID, "client disconnected")
			}
			return
		}
	}
}

// writeSSE writes one event frame: an event line naming the type and a data
// line carrying the JSON payload.
func writeSSE(w http.ResponseWriter, ev executor.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}

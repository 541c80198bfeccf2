package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/coppice-labs/switchboard/internal/apierr"
	"github.com/coppice-labs/switchboard/internal/executor"
	"github.com/coppice-labs/switchboard/internal/logger"
	"github.com/coppice-labs/switchboard/internal/request"
	"github.com/coppice-labs/switchboard/internal/session"
)

func writeJSONBody(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

// healthResponse is the GET /api/v1/health body.
type healthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	CLIAvailable    bool   `json:"claude_cli_available"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	RunningSessions int    `json:"running_sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	available := s.exec.Ping(r.Context()) == nil

	status := "ok"
	if !available {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:          status,
		Version:         Version,
		CLIAvailable:    available,
		UptimeSeconds:   int64(time.Since(s.started).Seconds()),
		RunningSessions: s.manager.RunningCount(),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := jsonschema.For[request.ExecutionRequest](nil)
	if err != nil {
		writeError(w, apierr.New(apierr.CodeInternal, "schema generation failed"))
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Limits.MaxRequestBytes))

	var req request.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apierr.New(apierr.CodeInvalidRequest,
				"Request body exceeds maximum of %d bytes", s.cfg.Limits.MaxRequestBytes))
			return
		}
		writeError(w, apierr.New(apierr.CodeInvalidRequest, "Invalid JSON body"))
		return
	}

	if req.Options.TimeoutSeconds == 0 {
		req.Options.TimeoutSeconds = s.cfg.Executor.DefaultTimeoutSeconds
	}
	req.Options.ApplyDefaults()

	if req.EstimateSize() > s.cfg.Limits.MaxRequestBytes {
		writeError(w, apierr.New(apierr.CodeInvalidRequest,
			"Request payload exceeds maximum of %d bytes", s.cfg.Limits.MaxRequestBytes))
		return
	}

	limits := request.Limits{
		MaxScreenshots:  s.cfg.Limits.MaxScreenshots,
		MaxPromptLength: s.cfg.Limits.MaxPromptLength,
		MaxIntentLength: s.cfg.Limits.MaxIntentLength,
	}
	if err := req.Validate(limits); err != nil {
		writeError(w, err)
		return
	}

	if req.SessionID == "" {
		req.SessionID = session.NewID()
	}

	if _, err := s.manager.Register(req.SessionID); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	s.registerCancel(req.SessionID, cancel)
	defer func() {
		cancel()
		s.dropCancel(req.SessionID)
	}()

	events, err := s.exec.Execute(ctx, &req)
	if err != nil {
		_ = s.manager.Fail(req.SessionID, err.Error())
		writeError(w, err)
		return
	}

	if req.Options.Stream {
		s.streamEvents(w, r, req.SessionID, events)
		return
	}
	s.respondAggregate(w, req.SessionID, events)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := s.manager.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.manager.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	s.cancelSession(id)

	info, err := s.manager.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// executeResult is the non-streaming response body, also used by /inference.
type executeResult struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// respondAggregate drains the stream and replies with one JSON body: the
// concatenated content plus the terminal status.
func (s *Server) respondAggregate(w http.ResponseWriter, sessionID string, events <-chan executor.Event) {
	var content strings.Builder
	status := executor.StatusFailed
	errMsg := ""

	for ev := range events {
		switch ev.Type {
		case executor.EventContent:
			if content.Len() > 0 {
				content.WriteString("\n")
			}
			content.WriteString(ev.Text)
		case executor.EventError:
			errMsg = ev.Message
			_ = s.manager.Fail(sessionID, ev.Message)
		case executor.EventComplete:
			status = ev.Status
		}
	}

	// Terminal states are sticky: Complete after a recorded failure is a
	// no-op.
	if status == executor.StatusSuccess {
		_ = s.manager.Complete(sessionID)
	} else {
		_ = s.manager.Fail(sessionID, errMsg)
	}

	writeJSON(w, http.StatusOK, executeResult{
		SessionID: sessionID,
		Status:    status,
		Message:   content.String(),
		Error:     errMsg,
	})
}

// inferenceRequest is the legacy single-shot body: a bare prompt without
// captured context.
type inferenceRequest struct {
	Prompt     string `json:"prompt"`
	UserIntent string `json:"user_intent,omitempty"`
	Timeout    int    `json:"timeout_seconds,omitempty"`
}

func (s *Server) handleInference(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Limits.MaxRequestBytes))

	var in inferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apierr.New(apierr.CodeInvalidRequest, "Invalid JSON body"))
		return
	}
	if in.Prompt == "" {
		writeError(w, apierr.New(apierr.CodeInvalidRequest, "prompt cannot be empty"))
		return
	}

	req := &request.ExecutionRequest{
		SessionID: session.NewID(),
		Prompt:    in.Prompt,
		Context:   request.RequestContext{UserIntent: in.UserIntent},
		Options:   request.RequestOptions{TimeoutSeconds: in.Timeout},
	}
	if req.Options.TimeoutSeconds == 0 {
		req.Options.TimeoutSeconds = s.cfg.Executor.DefaultTimeoutSeconds
	}
	req.Options.ApplyDefaults()
	if req.Options.TimeoutSeconds > request.MaxTimeoutSeconds {
		writeError(w, apierr.New(apierr.CodeInvalidRequest,
			"timeout_seconds must be in (0, %d], got %d", request.MaxTimeoutSeconds, req.Options.TimeoutSeconds))
		return
	}

	if _, err := s.manager.Register(req.SessionID); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	s.registerCancel(req.SessionID, cancel)
	defer func() {
		cancel()
		s.dropCancel(req.SessionID)
	}()

	events, err := s.exec.Execute(ctx, req)
	if err != nil {
		_ = s.manager.Fail(req.SessionID, err.Error())
		writeError(w, err)
		return
	}

	s.respondAggregate(w, req.SessionID, events)
}

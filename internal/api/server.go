// Package api exposes the HTTP surface: execution, session queries,
// health, schema and metrics.
package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/coppice-labs/switchboard/internal/apierr"
	"github.com/coppice-labs/switchboard/internal/auth"
	"github.com/coppice-labs/switchboard/internal/config"
	"github.com/coppice-labs/switchboard/internal/executor"
	"github.com/coppice-labs/switchboard/internal/logger"
	"github.com/coppice-labs/switchboard/internal/metrics"
	"github.com/coppice-labs/switchboard/internal/session"
)

// Version is stamped at build time.
var Version = "dev"

// Server wires the HTTP routes to the session manager and executor.
type Server struct {
	cfg     *config.Config
	manager *session.Manager
	exec    executor.Executor
	authn   *auth.Authenticator
	limiter *auth.RateLimiter
	httpSrv *http.Server
	started time.Time

	// cancel functions for in-flight executions, keyed by session id
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewServer builds the server and its router.
func NewServer(cfg *config.Config, manager *session.Manager, exec executor.Executor, authn *auth.Authenticator, limiter *auth.RateLimiter) *Server {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		exec:    exec,
		authn:   authn,
		limiter: limiter,
		started: time.Now(),
		cancels: make(map[string]context.CancelFunc),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/schema", s.handleSchema)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(authn))
			r.Use(auth.RateLimitMiddleware(limiter))
			r.Post("/execute", s.handleExecute)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(authn))
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Delete("/sessions/{id}", s.handleCancelSession)
		})
	})

	// Legacy single-shot endpoint, address-limited instead of token-limited.
	addrLimiter := auth.NewAddrLimiter(cfg.Auth.InferencePerSecond, cfg.Auth.InferenceBurst)
	r.Group(func(r chi.Router) {
		r.Use(auth.AddrLimitMiddleware(addrLimiter))
		r.Post("/inference", s.handleInference)
	})

	s.httpSrv = &http.Server{
		Addr:              cfg.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if s.cfg.Server.TLS.Enabled {
		logger.Info("HTTPS server listening on %s", s.httpSrv.Addr)
		return s.httpSrv.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
	}
	logger.Info("HTTP server listening on %s", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests, cancelling running executions first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, cancel := range s.cancels {
		logger.Info("Shutdown: cancelling session %s", id)
		cancel()
	}
	s.mu.Unlock()

	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *Server) dropCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

func (s *Server) cancelSession(id string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func writeError(w http.ResponseWriter, err error) {
	resp := apierr.Response(err)
	w.Header().Set("Content-Type", "application/json")
	if resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	w.WriteHeader(apierr.CodeOf(err).HTTPStatus())
	writeJSONBody(w, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSONBody(w, v)
}

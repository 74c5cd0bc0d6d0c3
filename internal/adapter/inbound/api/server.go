package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mcpbridge/gateway/internal/config"
	"github.com/mcpbridge/gateway/internal/domain/audit"
	"github.com/mcpbridge/gateway/internal/domain/logbus"
	"github.com/mcpbridge/gateway/internal/domain/metrics"
	"github.com/mcpbridge/gateway/internal/domain/session"
	"github.com/mcpbridge/gateway/internal/service"
)

// AuditRecorder is the subset of the file-backed audit store the main port
// needs: append new records and read back the recent ring-buffer view for
// /_meta/audit. Nil when the audit trail is disabled, in which case the
// Endpoint Synthesizer skips recording entirely.
type AuditRecorder interface {
	Append(ctx context.Context, records ...audit.AuditRecord) error
	GetRecent(n int) []audit.AuditRecord
}

// Deps collects every service the main HTTP port dispatches into. All
// fields but Policy and Audit are required; Policy is nil when no CEL
// allow_if predicate is ever configured, and Audit is nil when the audit
// trail is disabled, in which case the Endpoint Synthesizer skips each
// check entirely.
type Deps struct {
	Supervisor   *service.Supervisor
	State        *service.StateManager
	Runner       *service.Runner
	Metrics      *metrics.Aggregator
	Policy       *service.ToolPolicy
	Sessions     *session.Manager
	Catalog      *service.CatalogBuilder
	Management   *service.ManagementDispatcher
	Orchestrator *service.Orchestrator
	Logs         *logbus.Buffer
	Audit        AuditRecorder
	Config       *config.GatewayConfig
	Logger       *slog.Logger
	Version      string

	TimeoutDefault time.Duration
	TimeoutMax     time.Duration
}

// Server is the main HTTP port (spec.md §6): tool invocation, /_meta/*
// admin routes, and /sessions/* chat routes, served on a listener
// distinct from the raw MCP proxy port.
type Server struct {
	deps    Deps
	addr    string
	router  chi.Router
	http    *http.Server
	openapi *openapiCache
}

// NewServer builds the chi router and wires every route group.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		deps:    deps,
		addr:    addr,
		openapi: newOpenAPICache(),
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	s.mountMeta(r)
	s.mountSessions(r)
	s.mountSynthesizer(r)
	s.router = r
	return s
}

// Start begins serving and blocks until ctx is cancelled or the listener
// fails, matching the raw port's Transport.Start contract.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.http.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.deps.Logger.Info("main http port listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		return s.Close()
	case err := <-errCh:
		return err
	}
}

// Close gracefully stops the listener.
func (s *Server) Close() error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

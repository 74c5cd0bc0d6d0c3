// Package service implements the gateway's stateful, long-running
// components: the Upstream Supervisor, State Manager, Runner, Schema
// Translator/Endpoint Synthesizer wiring, and Chat Orchestrator.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/port/outbound"
)

// ClientDialer opens a live outbound.MCPClient for one upstream config,
// dispatching on cfg.Transport. The concrete implementation lives in
// internal/adapter/outbound/mcpclient; the supervisor only depends on this
// function type so it stays transport-agnostic (spec.md §4.1 "Algorithm —
// transport dispatch").
type ClientDialer func(ctx context.Context, cfg upstream.Config) (outbound.MCPClient, error)

// SupervisorOption tunes the Upstream Supervisor's retry/backoff
// parameters for tests; defaults mirror the teacher's UpstreamManager.
type SupervisorOption func(*Supervisor)

// WithBackoff overrides the exponential-backoff base and cap.
func WithBackoff(base, cap time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.backoffBase = base
		s.backoffCap = cap
	}
}

// WithMaxRetries overrides the retry ceiling before a session is marked
// StatusDisconnected for good (until the next Reload or manual Reinit).
func WithMaxRetries(n int) SupervisorOption {
	return func(s *Supervisor) { s.maxRetries = n }
}

// WithHealthCheckInterval overrides how often a connected session is
// polled (via ListTools) to detect a silently-dropped transport.
func WithHealthCheckInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.healthCheckInterval = d }
}

// WithStability sets the Supervisor's stabilityDuration. The retry count
// is reset on every successful connect and every passing health check;
// stabilityDuration is not consulted for that reset.
func WithStability(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.stabilityDuration = d }
}

// mountedSession pairs a domain upstream.Session with the supervisor-only
// bookkeeping (retry count, cancellation) the teacher's upstreamConnection
// kept alongside the connection.
type mountedSession struct {
	session     *upstream.Session
	retryCount  int
	cancelRetry context.CancelFunc
	mu          sync.Mutex
}

// Supervisor is the Upstream Supervisor (C4): it owns one upstream.Session
// per configured MCP server, drives the connect/retry/health-check
// lifecycle per session, and serializes hot-reload diffs under a single
// mutex (spec.md §4.1).
type Supervisor struct {
	dial   ClientDialer
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*mountedSession
	order    []string // mount order, for LIFO teardown

	reloadMu   sync.Mutex
	generation int
	lastReload time.Time

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	backoffBase         time.Duration
	backoffCap          time.Duration
	maxRetries          int
	healthCheckInterval time.Duration
	stabilityDuration   time.Duration
}

// NewSupervisor creates a Supervisor. Call Reload with the initial config
// set to mount the first generation of upstreams.
func NewSupervisor(dial ClientDialer, logger *slog.Logger, opts ...SupervisorOption) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		dial:                dial,
		logger:              logger,
		sessions:            make(map[string]*mountedSession),
		ctx:                 ctx,
		cancel:              cancel,
		backoffBase:         1 * time.Second,
		backoffCap:          60 * time.Second,
		maxRetries:          10,
		healthCheckInterval: 30 * time.Second,
		stabilityDuration:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generation returns the reload generation and the timestamp of the last
// successful reload, for /healthz (spec.md §6).
func (s *Supervisor) Generation() (int, time.Time) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.generation, s.lastReload
}

// Session returns the named upstream's session, or false if it is not
// mounted.
func (s *Supervisor) Session(name string) (*upstream.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, ok := s.sessions[name]
	if !ok {
		return nil, false
	}
	return ms.session, true
}

// Sessions returns every mounted session in mount order.
func (s *Supervisor) Sessions() []*upstream.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*upstream.Session, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.sessions[name].session)
	}
	return out
}

// AnyConnected reports whether at least one upstream session is currently
// connected (spec.md §6 "/healthz" readiness signal).
func (s *Supervisor) AnyConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ms := range s.sessions {
		if ms.session.Connected() {
			return true
		}
	}
	return false
}

// Reload performs the hot-reload diff against the current mounted set
// (spec.md §4.1 "Hot-reload diff"). It computes to-remove, to-add, and
// to-update sets by name and Config.Equal, unmounts to-remove ∪ to-update,
// then mounts to-add ∪ to-update. The whole operation runs under the
// reload mutex; a mount failure during to-add/to-update rolls the route
// table back to its pre-reload snapshot and returns the triggering error
// without bumping the generation counter.
func (s *Supervisor) Reload(ctx context.Context, configs []upstream.Config) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	byName := make(map[string]upstream.Config, len(configs))
	for _, cfg := range configs {
		byName[cfg.Name] = cfg
	}

	s.mu.RLock()
	toRemove := make([]string, 0)
	toUpdate := make([]string, 0)
	for name, ms := range s.sessions {
		newCfg, stillPresent := byName[name]
		if !stillPresent {
			toRemove = append(toRemove, name)
			continue
		}
		old := ms.session.Config()
		if !old.Equal(&newCfg) {
			toUpdate = append(toUpdate, name)
		}
	}
	toAdd := make([]string, 0)
	for name := range byName {
		if _, existed := s.sessions[name]; !existed {
			toAdd = append(toAdd, name)
		}
	}
	s.mu.RUnlock()

	snapshot := s.snapshotSessions()

	for _, name := range toRemove {
		s.unmount(name)
	}
	for _, name := range toUpdate {
		s.unmount(name)
	}

	mounted := make([]string, 0, len(toAdd)+len(toUpdate))
	var mountErr error
	for _, name := range append(append([]string{}, toAdd...), toUpdate...) {
		cfg := byName[name]
		if err := s.mount(ctx, cfg); err != nil {
			mountErr = fmt.Errorf("mount upstream %q: %w", name, err)
			break
		}
		mounted = append(mounted, name)
	}

	if mountErr != nil {
		for _, name := range mounted {
			s.unmount(name)
		}
		s.restoreSessions(snapshot)
		s.logger.Error("reload failed, rolled back", "error", mountErr)
		return mountErr
	}

	s.generation++
	s.lastReload = time.Now().UTC()
	s.logger.Info("reload succeeded", "generation", s.generation,
		"added", len(toAdd), "updated", len(toUpdate), "removed", len(toRemove))
	return nil
}

// sessionSnapshot pairs the session set with its mount order, so a
// rollback restores both — the order is what gives teardown (spec.md §5
// "tearing down sessions in reverse mount order") a LIFO guarantee to
// hold after a rolled-back reload, not just before one.
type sessionSnapshot struct {
	sessions map[string]*mountedSession
	order    []string
}

// snapshotSessions captures the current session set and order for
// rollback, without cloning session internals (unaffected sessions are
// simply left mounted and are not part of the snapshot restore path).
func (s *Supervisor) snapshotSessions() sessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]*mountedSession, len(s.sessions))
	for k, v := range s.sessions {
		snap[k] = v
	}
	order := append([]string(nil), s.order...)
	return sessionSnapshot{sessions: snap, order: order}
}

func (s *Supervisor) restoreSessions(snap sessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = snap.sessions
	s.order = snap.order
}

// mount creates and registers a new session for cfg, then attempts the
// initial connect. A connect failure during a fresh mount still leaves
// the session registered (disconnected, with the error recorded) so the
// route table stays consistent (spec.md §4.1 "Failure semantics"); only a
// config validation error, the one error this function returns, causes
// the caller (Reload) to roll back.
func (s *Supervisor) mount(ctx context.Context, cfg upstream.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	sess := upstream.NewSession(cfg)
	ms := &mountedSession{session: sess}

	s.mu.Lock()
	s.sessions[cfg.Name] = ms
	s.order = append(s.order, cfg.Name)
	s.mu.Unlock()

	s.attemptConnect(ms)
	return nil
}

// unmount tears down and deregisters a session.
func (s *Supervisor) unmount(name string) {
	s.mu.Lock()
	ms, ok := s.sessions[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.teardown(ms)
}

// Reinit re-runs the connect handshake for an already-mounted session
// without removing it from the route table (spec.md §4.1 contract
// "reinit(name)").
func (s *Supervisor) Reinit(name string) error {
	s.mu.RLock()
	ms, ok := s.sessions[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("upstream %q is not mounted", name)
	}
	s.attemptConnect(ms)
	return nil
}

func (s *Supervisor) teardown(ms *mountedSession) {
	ms.mu.Lock()
	if ms.cancelRetry != nil {
		ms.cancelRetry()
		ms.cancelRetry = nil
	}
	ms.mu.Unlock()

	if client := ms.session.Client(); client != nil {
		if err := client.Close(); err != nil {
			s.logger.Warn("failed to close upstream client", "name", ms.session.Name(), "error", err)
		}
	}
	ms.session.MarkDisconnected(nil)
}

// attemptConnect dials the transport, performs initialize + tools/list,
// and records the outcome on the session. On failure it schedules a
// backoff retry (spec.md §4.1 "After the transport is up, call MCP
// initialize, then tools/list... Any failure leaves the session
// disconnected with a stored error").
func (s *Supervisor) attemptConnect(ms *mountedSession) {
	ms.session.MarkConnecting()
	cfg := ms.session.Config()

	client, err := s.dial(s.ctx, cfg)
	if err != nil {
		s.logger.Error("upstream dial failed", "name", cfg.Name, "error", err)
		ms.session.MarkDisconnected(fmt.Errorf("dial: %w", err))
		s.scheduleRetry(ms)
		return
	}

	if err := client.Initialize(s.ctx); err != nil {
		_ = client.Close()
		s.logger.Error("upstream initialize failed", "name", cfg.Name, "error", err)
		ms.session.MarkDisconnected(fmt.Errorf("initialize: %w", err))
		s.scheduleRetry(ms)
		return
	}

	discovered, err := client.ListTools(s.ctx)
	if err != nil {
		_ = client.Close()
		s.logger.Error("upstream tools/list failed", "name", cfg.Name, "error", err)
		ms.session.MarkDisconnected(fmt.Errorf("tools/list: %w", err))
		s.scheduleRetry(ms)
		return
	}

	tools := make([]upstream.Tool, len(discovered))
	for i, d := range discovered {
		tools[i] = upstream.Tool{
			Name:         d.Name,
			Description:  d.Description,
			InputSchema:  d.InputSchema,
			OutputSchema: d.OutputSchema,
		}
	}

	ms.mu.Lock()
	ms.retryCount = 0
	ms.mu.Unlock()

	ms.session.MarkConnected(client, tools)
	s.logger.Info("upstream connected", "name", cfg.Name, "tools", len(tools))

	go s.monitorHealth(ms, client)
}

// monitorHealth periodically re-issues ListTools against a connected
// session's client to detect a transport that died without an explicit
// error (e.g. a killed stdio subprocess or a dropped SSE stream). The
// mcp-go transports don't expose a blocking Wait() the way the teacher's
// raw pipe client did, so health is inferred from a failing round trip
// instead (spec.md §4.1 contract has no prescribed mechanism; grounded on
// the teacher's monitorHealth intent, realized via polling here).
func (s *Supervisor) monitorHealth(ms *mountedSession, client outbound.MCPClient) {
	ticker := time.NewTicker(s.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		if ms.session.Client() != client {
			// Session was reconnected or torn down under us.
			return
		}

		ctx, cancel := context.WithTimeout(s.ctx, s.healthCheckInterval)
		_, err := client.ListTools(ctx)
		cancel()
		if err == nil {
			s.checkStability(ms)
			continue
		}

		if ms.session.Client() != client {
			return
		}

		s.logger.Warn("upstream health check failed, reconnecting", "name", ms.session.Name(), "error", err)
		_ = client.Close()
		ms.session.MarkDisconnected(fmt.Errorf("health check: %w", err))
		s.scheduleRetry(ms)
		return
	}
}

// checkStability resets a session's retry count to zero. It runs after
// every passing health check, whatever the time the session has been
// connected; stabilityDuration is not read here.
func (s *Supervisor) checkStability(ms *mountedSession) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.retryCount > 0 {
		ms.retryCount = 0
	}
}

// calcBackoffDelay computes min(base * 2^retryCount, cap), exactly the
// teacher's UpstreamManager.calcBackoffDelay formula.
func (s *Supervisor) calcBackoffDelay(retryCount int) time.Duration {
	delay := s.backoffBase
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay > s.backoffCap {
			return s.backoffCap
		}
	}
	if delay > s.backoffCap {
		return s.backoffCap
	}
	return delay
}

// scheduleRetry schedules a reconnection attempt with exponential backoff,
// giving up (leaving the session disconnected) once maxRetries is
// exceeded.
func (s *Supervisor) scheduleRetry(ms *mountedSession) {
	ms.mu.Lock()
	if ms.retryCount >= s.maxRetries {
		ms.mu.Unlock()
		s.logger.Error("max retries exceeded, giving up", "name", ms.session.Name(), "retries", s.maxRetries)
		return
	}
	delay := s.calcBackoffDelay(ms.retryCount)
	ms.retryCount++
	attempt := ms.retryCount

	retryCtx, retryCancel := context.WithCancel(s.ctx)
	ms.cancelRetry = retryCancel
	ms.mu.Unlock()

	s.logger.Info("scheduling reconnect", "name", ms.session.Name(), "attempt", attempt, "delay", delay)

	go func() {
		select {
		case <-time.After(delay):
		case <-retryCtx.Done():
			return
		}

		s.mu.RLock()
		current, ok := s.sessions[ms.session.Name()]
		s.mu.RUnlock()
		if !ok || current != ms {
			return
		}

		s.attemptConnect(ms)
	}()
}

// Close tears down every mounted session in reverse mount order (LIFO)
// and cancels all background goroutines (spec.md §6 "tearing down
// sessions in reverse mount order").
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	order := append([]string(nil), s.order...)
	s.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		s.unmount(order[i])
	}

	s.cancel()
	return nil
}

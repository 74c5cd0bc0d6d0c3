package upstream

import (
	"encoding/json"
	"sync"
	"time"
)

// Status is the runtime connection state of an UpstreamSession
// (spec.md §3 UpstreamSession lifecycle: created, connecting, connected,
// disconnected).
type Status string

const (
	StatusCreated      Status = "created"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Tool is a tool descriptor as discovered from an upstream's tools/list
// response (spec.md §3 ToolDescriptor).
type Tool struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"inputSchema"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
}

// Session owns the transport channel, the MCP client handle, and the
// discovered tool list for one configured upstream. A Session is always
// mounted even when disconnected, so route topology stays stable
// (spec.md §4.1 "the gateway route remains mounted").
type Session struct {
	mu sync.RWMutex

	name   string
	cfg    Config
	client Client // outbound.MCPClient narrowed to avoid an import cycle; set by the supervisor

	status    Status
	lastError error
	tools     []Tool

	connectedSince time.Time
}

// Client is the minimal surface the upstream.Session needs from whatever
// wraps the concrete MCP transport; the full contract lives in
// internal/port/outbound to avoid this domain package depending on
// transport adapters.
type Client interface {
	Close() error
}

// NewSession creates a freshly "created" session for cfg. It is not yet
// connected; the supervisor drives it through Connect/MarkConnected/
// MarkDisconnected.
func NewSession(cfg Config) *Session {
	return &Session{name: cfg.Name, cfg: cfg, status: StatusCreated}
}

func (s *Session) Name() string { return s.name }

func (s *Session) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *Session) Tools() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *Session) Client() Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// MarkConnecting transitions the session into the connecting state.
func (s *Session) MarkConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusConnecting
}

// MarkConnected records a successful handshake plus discovered tools.
func (s *Session) MarkConnected(client Client, tools []Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
	s.tools = tools
	s.status = StatusConnected
	s.lastError = nil
	s.connectedSince = time.Now().UTC()
}

// MarkDisconnected records a failure or clean teardown. The route stays
// mounted; callers consult Status()/LastError() for /healthz reporting.
func (s *Session) MarkDisconnected(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusDisconnected
	s.lastError = err
	s.client = nil
}

// Connected reports whether the session most recently completed the
// initialize + tools/list handshake.
func (s *Session) Connected() bool {
	return s.Status() == StatusConnected
}

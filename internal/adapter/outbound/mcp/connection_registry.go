package mcp

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// rawTransport is the shape StdioClient and HTTPClient both expose: start a
// raw byte-stream pair to one upstream, and tear it down.
type rawTransport interface {
	Start(ctx context.Context) (io.WriteCloser, io.ReadCloser, error)
	Close() error
}

type rawPipes struct {
	w io.WriteCloser
	r io.ReadCloser
}

// ConnectionRegistry holds one raw transport per upstream and lazily starts
// each on first use, satisfying the raw MCP proxy's UpstreamConnectionProvider
// port (internal/domain/proxy.UpstreamConnectionProvider) regardless of
// whether the upstream is reached over stdio or Streamable HTTP.
type ConnectionRegistry struct {
	mu         sync.Mutex
	transports map[string]rawTransport
	pipes      map[string]rawPipes
}

// NewConnectionRegistry creates an empty ConnectionRegistry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		transports: make(map[string]rawTransport),
		pipes:      make(map[string]rawPipes),
	}
}

// Register associates an upstream name with the raw transport that reaches
// it. It must be called before GetConnection is asked for that name.
func (r *ConnectionRegistry) Register(upstreamName string, transport rawTransport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[upstreamName] = transport
}

// GetConnection returns the stdin-writer/stdout-reader pair for an
// upstream, starting its transport on first use.
func (r *ConnectionRegistry) GetConnection(upstreamID string) (io.WriteCloser, io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pipes[upstreamID]; ok {
		return p.w, p.r, nil
	}

	transport, ok := r.transports[upstreamID]
	if !ok {
		return nil, nil, fmt.Errorf("mcp: no transport registered for upstream %q", upstreamID)
	}

	w, rd, err := transport.Start(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("mcp: starting upstream %q: %w", upstreamID, err)
	}
	r.pipes[upstreamID] = rawPipes{w: w, r: rd}
	return w, rd, nil
}

// AllConnected reports whether at least one upstream transport is
// registered (spec.md §4.6's "no upstreams available" 503-equivalent).
func (r *ConnectionRegistry) AllConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transports) > 0
}

// Close tears down every started connection.
func (r *ConnectionRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, transport := range r.transports {
		if err := transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing upstream %q: %w", name, err))
		}
	}
	r.pipes = make(map[string]rawPipes)
	if len(errs) > 0 {
		return fmt.Errorf("mcp: errors closing connections: %v", errs)
	}
	return nil
}

// Compile-time checks that StdioClient and HTTPClient satisfy rawTransport.
var (
	_ rawTransport = (*StdioClient)(nil)
	_ rawTransport = (*HTTPClient)(nil)
)

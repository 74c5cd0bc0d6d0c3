package mcp

import (
	"fmt"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// BuildConnectionRegistry constructs a ConnectionRegistry with one raw
// transport per config, dispatching on cfg.Transport the same way the
// typed mcpclient.Dial dispatcher does (spec.md §4.6 — the raw MCP port
// opens its own connection per upstream, independent of the main port's
// typed Upstream Supervisor session).
func BuildConnectionRegistry(configs []*upstream.Config) (*ConnectionRegistry, error) {
	reg := NewConnectionRegistry()
	for _, cfg := range configs {
		transport, err := newRawTransport(cfg)
		if err != nil {
			return nil, fmt.Errorf("mcp: upstream %q: %w", cfg.Name, err)
		}
		reg.Register(cfg.Name, transport)
	}
	return reg, nil
}

func newRawTransport(cfg *upstream.Config) (rawTransport, error) {
	switch cfg.Transport {
	case upstream.TransportStdio:
		return NewStdioClient(cfg.Command, cfg.Args, WithEnv(cfg.Env)), nil
	case upstream.TransportSSE, upstream.TransportStreamableHTTP:
		return NewHTTPClient(cfg.URL, WithHeaders(cfg.Headers)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

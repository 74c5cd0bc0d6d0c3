package mcpclient

import (
	"context"
	"fmt"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/port/outbound"
)

// Dial opens a live outbound.MCPClient for cfg, dispatching on
// cfg.Transport (spec.md §4.1 "Algorithm — transport dispatch"). It has
// the service.ClientDialer shape and is the dispatcher the Upstream
// Supervisor is constructed with in internal/gateway.
func Dial(ctx context.Context, cfg upstream.Config) (outbound.MCPClient, error) {
	switch cfg.Transport {
	case upstream.TransportStdio:
		return NewStdio(cfg)
	case upstream.TransportSSE:
		return NewSSE(ctx, cfg)
	case upstream.TransportStreamableHTTP:
		return NewStreamableHTTP(ctx, cfg)
	default:
		return nil, fmt.Errorf("mcpclient: unknown transport %q for upstream %q", cfg.Transport, cfg.Name)
	}
}

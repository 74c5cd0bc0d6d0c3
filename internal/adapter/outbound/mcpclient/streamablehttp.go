package mcpclient

import (
	"context"
	"fmt"

	sdkclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/port/outbound"
)

// NewStreamableHTTP opens a streamable-HTTP session against cfg.URL and
// returns an outbound.MCPClient (spec.md §4.1 "streamable-http: open a
// streamable-HTTP MCP client; inject the same protocol-version header").
func NewStreamableHTTP(ctx context.Context, cfg upstream.Config) (outbound.MCPClient, error) {
	headers := mergeProtocolHeader(cfg.Headers)

	inner, err := sdkclient.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("mcpclient: create streamable-http upstream %q: %w", cfg.Name, err)
	}
	if err := inner.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcpclient: start streamable-http upstream %q: %w", cfg.Name, err)
	}
	return newClient(cfg.Name, inner), nil
}

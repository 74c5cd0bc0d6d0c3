package mcpclient

import (
	"context"
	"fmt"

	sdkclient "github.com/mark3labs/mcp-go/client"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/port/outbound"
)

// protocolVersionHeader is injected on every SSE/streamable-HTTP connect so
// upstreams can negotiate against the version this gateway speaks
// (spec.md §4.1 "inject header MCP-Protocol-Version").
const protocolVersionHeader = "2025-06-18"

// NewSSE opens a persistent SSE session against cfg.URL and returns an
// outbound.MCPClient (spec.md §4.1 "sse: open a persistent SSE client").
func NewSSE(ctx context.Context, cfg upstream.Config) (outbound.MCPClient, error) {
	headers := mergeProtocolHeader(cfg.Headers)

	inner, err := sdkclient.NewSSEMCPClient(cfg.URL, sdkclient.WithHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("mcpclient: create SSE upstream %q: %w", cfg.Name, err)
	}
	if err := inner.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcpclient: start SSE upstream %q: %w", cfg.Name, err)
	}
	return newClient(cfg.Name, inner), nil
}

func mergeProtocolHeader(headers map[string]string) map[string]string {
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged["MCP-Protocol-Version"] = protocolVersionHeader
	return merged
}

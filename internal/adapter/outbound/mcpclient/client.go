// Package mcpclient adapts mark3labs/mcp-go's client package to the
// outbound.MCPClient port, across the three transports an upstream may
// use: stdio, SSE, and streamable-HTTP (spec.md §4.1 "Algorithm —
// transport dispatch").
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdkclient "github.com/mark3labs/mcp-go/client"
	sdkmcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpbridge/gateway/internal/port/outbound"
)

// clientName/clientVersion identify this gateway to upstream MCP servers
// during the initialize handshake.
const (
	clientName    = "mcp-gateway"
	clientVersion = "0.1.0"
)

// client wraps one mark3labs/mcp-go transport client and adapts its
// Initialize/ListTools/CallTool/Close surface to outbound.MCPClient. The
// transport-specific constructors (NewStdio, NewSSE, NewStreamableHTTP)
// build the inner sdkclient.MCPClient and hand it to newClient.
type client struct {
	mu    sync.RWMutex
	name  string
	inner sdkclient.MCPClient
}

func newClient(name string, inner sdkclient.MCPClient) *client {
	return &client{name: name, inner: inner}
}

// Initialize performs the MCP handshake.
func (c *client) Initialize(ctx context.Context) error {
	_, err := c.inner.Initialize(ctx, sdkmcp.InitializeRequest{
		Params: sdkmcp.InitializeParams{
			ProtocolVersion: sdkmcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdkmcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("mcpclient: initialize %q: %w", c.name, err)
	}
	return nil
}

// ListTools returns the tool descriptors the upstream currently advertises.
func (c *client) ListTools(ctx context.Context) ([]outbound.DiscoveredTool, error) {
	result, err := c.inner.ListTools(ctx, sdkmcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools %q: %w", c.name, err)
	}

	tools := make([]outbound.DiscoveredTool, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage(`{}`)
		}
		tools = append(tools, outbound.DiscoveredTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

// CallTool invokes the named tool with the given arguments.
func (c *client) CallTool(ctx context.Context, name string, args map[string]any) (*outbound.ToolCallResult, error) {
	req := sdkmcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.inner.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: call tool %q on %q: %w", name, c.name, err)
	}

	blocks := make([]outbound.ContentBlock, 0, len(result.Content))
	for _, content := range result.Content {
		switch tc := content.(type) {
		case sdkmcp.TextContent:
			blocks = append(blocks, outbound.ContentBlock{Type: "text", Text: tc.Text})
		case *sdkmcp.TextContent:
			blocks = append(blocks, outbound.ContentBlock{Type: "text", Text: tc.Text})
		case sdkmcp.ImageContent:
			blocks = append(blocks, outbound.ContentBlock{Type: "image", MimeType: tc.MIMEType, Data: tc.Data})
		case *sdkmcp.ImageContent:
			blocks = append(blocks, outbound.ContentBlock{Type: "image", MimeType: tc.MIMEType, Data: tc.Data})
		case sdkmcp.EmbeddedResource:
			blocks = append(blocks, outbound.ContentBlock{Type: "resource", URI: resourceURI(tc.Resource)})
		case *sdkmcp.EmbeddedResource:
			blocks = append(blocks, outbound.ContentBlock{Type: "resource", URI: resourceURI(tc.Resource)})
		default:
			blocks = append(blocks, outbound.ContentBlock{Type: "text", Text: fmt.Sprintf("%v", content)})
		}
	}

	return &outbound.ToolCallResult{Content: blocks, IsError: result.IsError}, nil
}

// resourceURI extracts the URI from either resource-contents variant
// mcp-go's EmbeddedResource may carry.
func resourceURI(res sdkmcp.ResourceContents) string {
	switch r := res.(type) {
	case sdkmcp.TextResourceContents:
		return r.URI
	case sdkmcp.BlobResourceContents:
		return r.URI
	default:
		return ""
	}
}

// Close tears down the underlying transport.
func (c *client) Close() error {
	c.mu.Lock()
	inner := c.inner
	c.inner = nil
	c.mu.Unlock()

	if inner == nil {
		return nil
	}
	return inner.Close()
}

var _ outbound.MCPClient = (*client)(nil)

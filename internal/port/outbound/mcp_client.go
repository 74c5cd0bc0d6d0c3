// Package outbound defines the outbound port interfaces for connecting
// to upstream MCP servers.
package outbound

import (
	"context"
	"encoding/json"
)

// DiscoveredTool is a tool descriptor returned by an upstream's tools/list
// call, before it is folded into the domain upstream.Tool shape (spec.md
// §3 ToolDescriptor).
type DiscoveredTool struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage
}

// ContentBlock is one element of a tools/call result's content array. The
// Runner (C6) flattens these into the envelope's result value: text items
// that parse as JSON are unquoted to structured values, image/resource
// items keep their MIME type/URI, other kinds stringify (spec.md §4.3).
type ContentBlock struct {
	Type string // "text", "image", or "resource"

	Text string // text

	MimeType string // image
	Data     string // image, base64

	URI string // resource
}

// ToolCallResult is the outcome of one tools/call invocation.
type ToolCallResult struct {
	Content []ContentBlock
	IsError bool
}

// MCPClient is the outbound port for one live MCP session against a single
// upstream server, independent of its underlying transport (stdio, SSE,
// streamable-HTTP). The Upstream Supervisor (C4) drives Initialize once per
// connect attempt, then ListTools to populate the session's tool list; the
// Runner (C6) drives CallTool per tool invocation.
type MCPClient interface {
	// Initialize performs the MCP handshake. It must succeed before
	// ListTools or CallTool are called.
	Initialize(ctx context.Context) error

	// ListTools returns the tool descriptors the upstream currently
	// advertises.
	ListTools(ctx context.Context) ([]DiscoveredTool, error)

	// CallTool invokes the named tool with the given arguments and
	// returns its result. A non-nil error indicates a transport or
	// protocol failure; a tool-level failure is instead reported via
	// ToolCallResult.IsError with a message in Content.
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolCallResult, error)

	// Close tears down the session and releases transport resources.
	// Safe to call more than once.
	Close() error
}

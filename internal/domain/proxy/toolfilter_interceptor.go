// Package proxy contains the core domain logic for the MCP proxy.
package proxy

import (
	"context"
	"encoding/json"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/pkg/mcp"
)

// ErrCodeToolDisabled is the JSON-RPC error code returned for a blocked
// tools/call (spec.md §4.6).
const ErrCodeToolDisabled int64 = 403

// ToolStateChecker reports whether a given "upstream/tool" key is enabled.
// *service.StateManager satisfies this directly; proxy stays decoupled from
// the service layer by declaring the interface it needs rather than
// importing the concrete type.
type ToolStateChecker interface {
	IsToolEnabled(key string) bool
}

// ToolFilterInterceptor removes disabled tools from tools/list responses
// and blocks tools/call requests for disabled tools, per upstream state
// (spec.md §4.6). It wraps another interceptor (an UpstreamRouter, for the
// aggregate mount and for each per-upstream mount alike) and applies
// filtering around it.
//
// upstreamName is the fixed upstream this mount serves; pass "" for the
// aggregate mount, where each tool instead carries its own upstream hint
// (a "server__tool" name prefix or an annotations.server field).
type ToolFilterInterceptor struct {
	next         MessageInterceptor
	state        ToolStateChecker
	upstreamName string
}

// NewToolFilterInterceptor creates a ToolFilterInterceptor wrapping next.
func NewToolFilterInterceptor(next MessageInterceptor, state ToolStateChecker, upstreamName string) *ToolFilterInterceptor {
	return &ToolFilterInterceptor{next: next, state: state, upstreamName: upstreamName}
}

// Intercept blocks disabled tools/call requests before they reach next, and
// filters disabled entries out of tools/list responses next returns.
func (f *ToolFilterInterceptor) Intercept(ctx context.Context, msg *mcp.Message) (*mcp.Message, error) {
	if msg.Direction == mcp.ClientToServer && msg.IsToolCall() {
		if blocked := f.blockedResponse(msg); blocked != nil {
			return blocked, nil
		}
	}

	resp, err := f.next.Intercept(ctx, msg)
	if err != nil || resp == nil {
		return resp, err
	}

	if resp.Direction == mcp.ServerToClient {
		if _, filterErr := resp.FilterTools(f.isDisabled); filterErr != nil {
			// A result shaped unexpectedly is forwarded unchanged rather
			// than dropped (spec.md §4.6: never deadlock or block on a
			// parse failure).
			return resp, nil
		}
	}
	return resp, nil
}

// blockedResponse returns a JSON-RPC 403 error message if the requested
// tool resolves to a disabled state, or nil to let the call proceed.
func (f *ToolFilterInterceptor) blockedResponse(msg *mcp.Message) *mcp.Message {
	name := msg.ToolCallName()
	if name == "" {
		return nil
	}
	hint, toolName := f.resolve(name)
	if hint == "" {
		return nil
	}
	if f.state.IsToolEnabled(upstream.Key(hint, toolName)) {
		return nil
	}

	rawID := msg.RawID()
	errResp := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id,omitempty"`
		Error   mcp.RPCError    `json:"error"`
	}{
		JSONRPC: "2.0",
		ID:      rawID,
		Error:   mcp.RPCError{Code: ErrCodeToolDisabled, Message: "Tool '" + name + "' is disabled"},
	}
	raw, err := json.Marshal(errResp)
	if err != nil {
		return nil
	}
	return &mcp.Message{Raw: raw, Direction: mcp.ServerToClient, Timestamp: msg.Timestamp}
}

// isDisabled answers FilterTools' predicate for one tools/list entry.
func (f *ToolFilterInterceptor) isDisabled(upstreamHint, toolName string) bool {
	hint := upstreamHint
	if hint == "" {
		hint = f.upstreamName
	}
	if hint == "" {
		return false
	}
	return !f.state.IsToolEnabled(upstream.Key(hint, toolName))
}

// resolve splits a possibly "server__tool"-prefixed name into its upstream
// hint and bare tool name, falling back to this mount's fixed upstream.
func (f *ToolFilterInterceptor) resolve(name string) (upstreamHint, toolName string) {
	if hint := upstreamHintFromName(name); hint != "" {
		return hint, name[len(hint)+2:]
	}
	return f.upstreamName, name
}

// Compile-time check that ToolFilterInterceptor implements MessageInterceptor.
var _ MessageInterceptor = (*ToolFilterInterceptor)(nil)

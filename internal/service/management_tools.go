package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpbridge/gateway/internal/domain/session"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// managementUpstreamName is the sentinel CatalogEntry.UpstreamName value
// that marks a catalog entry as a management tool rather than a real
// upstream-backed one — executeToolCall checks for it before ever asking
// the Supervisor for a session (spec.md §4.4 "the catalog also includes
// management tools synthesized from the gateway's own REST surface,
// dispatched over an in-process transport (no network hop)").
const managementUpstreamName = "_gateway"

// ManagementDispatcher exposes a slice of the /_meta/* admin surface as
// chat-callable tools, executed directly against the Supervisor and
// StateManager instead of round-tripping through HTTP.
type ManagementDispatcher struct {
	supervisor *Supervisor
	state      *StateManager
}

// NewManagementDispatcher wires a ManagementDispatcher against the same
// Supervisor and StateManager the HTTP admin surface uses, so a chat
// session's view of "enabled" always matches the REST surface's.
func NewManagementDispatcher(sup *Supervisor, state *StateManager) *ManagementDispatcher {
	return &ManagementDispatcher{supervisor: sup, state: state}
}

// CatalogEntries returns the management tool catalog, for CatalogBuilder.Build's
// extra parameter.
func (d *ManagementDispatcher) CatalogEntries() []session.CatalogEntry {
	return []session.CatalogEntry{
		{
			Name:         "list_servers",
			UpstreamName: managementUpstreamName,
			ToolName:     "list_servers",
			Description:  "List every configured upstream MCP server and its connection status.",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
		{
			Name:         "list_server_tools",
			UpstreamName: managementUpstreamName,
			ToolName:     "list_server_tools",
			Description:  "List the tools one upstream server exposes, with their enabled state.",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"server":{"type":"string"}},"required":["server"]}`),
		},
		{
			Name:         "set_server_enabled",
			UpstreamName: managementUpstreamName,
			ToolName:     "set_server_enabled",
			Description:  "Enable or disable an upstream server, without unmounting it.",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"server":{"type":"string"},"enabled":{"type":"boolean"}},"required":["server","enabled"]}`),
		},
		{
			Name:         "set_tool_enabled",
			UpstreamName: managementUpstreamName,
			ToolName:     "set_tool_enabled",
			Description:  "Enable or disable one tool on an upstream server.",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"server":{"type":"string"},"tool":{"type":"string"},"enabled":{"type":"boolean"}},"required":["server","tool","enabled"]}`),
		},
		{
			Name:         "reinit_server",
			UpstreamName: managementUpstreamName,
			ToolName:     "reinit_server",
			Description:  "Re-run the connect handshake for one already-mounted upstream server.",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"server":{"type":"string"}},"required":["server"]}`),
		},
	}
}

// Dispatch executes one management tool call in-process and returns a
// value suitable for json.Marshal into the chat tool-result message.
func (d *ManagementDispatcher) Dispatch(ctx context.Context, toolName string, args map[string]any) (any, error) {
	switch toolName {
	case "list_servers":
		return d.listServers(), nil
	case "list_server_tools":
		server, _ := args["server"].(string)
		return d.listServerTools(server)
	case "set_server_enabled":
		server, _ := args["server"].(string)
		enabled, _ := args["enabled"].(bool)
		if server == "" {
			return nil, fmt.Errorf("management: set_server_enabled: missing \"server\"")
		}
		return nil, d.state.SetServerEnabled(server, enabled)
	case "set_tool_enabled":
		server, _ := args["server"].(string)
		toolArg, _ := args["tool"].(string)
		enabled, _ := args["enabled"].(bool)
		if server == "" || toolArg == "" {
			return nil, fmt.Errorf("management: set_tool_enabled: missing \"server\" or \"tool\"")
		}
		return nil, d.state.SetToolEnabled(upstream.Key(server, toolArg), enabled)
	case "reinit_server":
		server, _ := args["server"].(string)
		if server == "" {
			return nil, fmt.Errorf("management: reinit_server: missing \"server\"")
		}
		return nil, d.supervisor.Reinit(server)
	default:
		return nil, fmt.Errorf("management: unknown tool %q", toolName)
	}
}

type managementServerSummary struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Enabled   bool   `json:"enabled"`
}

func (d *ManagementDispatcher) listServers() []managementServerSummary {
	sessions := d.supervisor.Sessions()
	out := make([]managementServerSummary, 0, len(sessions))
	for _, sess := range sessions {
		enabled := d.state == nil || d.state.IsServerEnabled(sess.Name())
		out = append(out, managementServerSummary{Name: sess.Name(), Connected: sess.Connected(), Enabled: enabled})
	}
	return out
}

type managementToolSummary struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func (d *ManagementDispatcher) listServerTools(server string) ([]managementToolSummary, error) {
	sess, ok := d.supervisor.Session(server)
	if !ok {
		return nil, fmt.Errorf("management: unknown upstream %q", server)
	}
	tools := sess.Tools()
	out := make([]managementToolSummary, 0, len(tools))
	for _, t := range tools {
		key := upstream.Key(server, t.Name)
		enabled := d.state == nil || d.state.IsToolEnabled(key)
		out = append(out, managementToolSummary{Name: t.Name, Enabled: enabled})
	}
	return out, nil
}

package mcpclient

import (
	"fmt"

	sdkclient "github.com/mark3labs/mcp-go/client"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/port/outbound"
)

// NewStdio spawns cfg's command as a subprocess and returns an
// outbound.MCPClient speaking MCP over its stdin/stdout pipes. cfg.Env is
// passed to mcp-go's NewStdioMCPClient as KEY=VALUE entries of extra
// environment; the supervisor passes cfg through without merging.
func NewStdio(cfg upstream.Config) (outbound.MCPClient, error) {
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	inner, err := sdkclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: start stdio upstream %q: %w", cfg.Name, err)
	}
	return newClient(cfg.Name, inner), nil
}

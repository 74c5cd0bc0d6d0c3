// Package proxy contains the core domain logic for the MCP proxy.
package proxy

import (
	"strings"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// ToolCacheAdapter wraps an upstream.ToolCache to satisfy the ToolCacheReader
// interface. The raw MCP port addresses tools two ways: an aggregate mount
// sees "server__tool"-prefixed names (spec.md §4.6), while a per-upstream
// mount sees the bare tool name the upstream itself advertises. GetTool
// tries the prefixed form first and falls back to a scan for the bare name.
type ToolCacheAdapter struct {
	cache *upstream.ToolCache
}

// NewToolCacheAdapter creates a new ToolCacheAdapter wrapping the given ToolCache.
func NewToolCacheAdapter(cache *upstream.ToolCache) *ToolCacheAdapter {
	return &ToolCacheAdapter{cache: cache}
}

// GetTool looks up a tool by name and converts it to a RoutableTool.
func (a *ToolCacheAdapter) GetTool(name string) (*RoutableTool, bool) {
	if upstreamName, toolName, ok := splitAggregateName(name); ok {
		if rt, found := a.cache.GetTool(upstream.Key(upstreamName, toolName)); found {
			return toRoutableTool(rt), true
		}
	}

	for _, rt := range a.cache.GetAllTools() {
		if rt.Name == name {
			return toRoutableTool(rt), true
		}
	}
	return nil, false
}

// GetAllTools returns all discovered tools as RoutableTools.
func (a *ToolCacheAdapter) GetAllTools() []*RoutableTool {
	allTools := a.cache.GetAllTools()
	result := make([]*RoutableTool, len(allTools))
	for i, rt := range allTools {
		result[i] = toRoutableTool(rt)
	}
	return result
}

// splitAggregateName splits a "server__tool" aggregate name into its
// upstream and tool parts. It reports false if name carries no "__"
// separator.
func splitAggregateName(name string) (upstreamName, toolName string, ok bool) {
	idx := strings.Index(name, "__")
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+2:], true
}

// toRoutableTool converts a RoutedTool to a RoutableTool.
func toRoutableTool(rt *upstream.RoutedTool) *RoutableTool {
	return &RoutableTool{
		Name:        rt.Name,
		UpstreamID:  rt.UpstreamName,
		Description: rt.Description,
		InputSchema: rt.InputSchema,
	}
}

// Compile-time check that ToolCacheAdapter implements ToolCacheReader.
var _ ToolCacheReader = (*ToolCacheAdapter)(nil)

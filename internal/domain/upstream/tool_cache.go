package upstream

import "sync"

// RoutedTool is a Tool annotated with the upstream it was discovered from,
// keyed in the ToolCache by "upstreamName/toolName" (the same namespace the
// Endpoint Synthesizer uses for HTTP routes, spec.md §3 ToolDescriptor).
type RoutedTool struct {
	Tool
	UpstreamName string
}

const (
	// MaxToolsPerUpstream bounds a single upstream's advertised tool count,
	// guarding against a misbehaving server exhausting memory.
	MaxToolsPerUpstream = 1000

	// MaxTotalTools bounds the cache across all upstreams combined.
	MaxTotalTools = 10000
)

// Key builds the "upstream/tool" cache key used throughout the gateway.
func Key(upstreamName, toolName string) string {
	return upstreamName + "/" + toolName
}

// ToolCache provides thread-safe storage for discovered tools, indexed by
// the "upstream/tool" key and by upstream name for bulk refresh/removal.
type ToolCache struct {
	mu         sync.RWMutex
	tools      map[string]*RoutedTool
	byUpstream map[string][]*RoutedTool
}

// NewToolCache creates a new empty ToolCache.
func NewToolCache() *ToolCache {
	return &ToolCache{
		tools:      make(map[string]*RoutedTool),
		byUpstream: make(map[string][]*RoutedTool),
	}
}

// SetToolsForUpstream replaces all tools for the given upstream.
func (c *ToolCache) SetToolsForUpstream(upstreamName string, tools []Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(tools) > MaxToolsPerUpstream {
		tools = tools[:MaxToolsPerUpstream]
	}

	if old, ok := c.byUpstream[upstreamName]; ok {
		for _, t := range old {
			delete(c.tools, Key(upstreamName, t.Name))
		}
	}

	routed := make([]*RoutedTool, 0, len(tools))
	for _, t := range tools {
		if len(c.tools) >= MaxTotalTools {
			break
		}
		rt := &RoutedTool{Tool: t, UpstreamName: upstreamName}
		routed = append(routed, rt)
		c.tools[Key(upstreamName, t.Name)] = rt
	}
	c.byUpstream[upstreamName] = routed
}

// GetTool looks up a tool by its "upstream/tool" key.
func (c *ToolCache) GetTool(key string) (*RoutedTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[key]
	return t, ok
}

// GetAllTools returns every cached tool across all upstreams.
func (c *ToolCache) GetAllTools() []*RoutedTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*RoutedTool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	return out
}

// GetToolsByUpstream returns the tools registered for one upstream.
func (c *ToolCache) GetToolsByUpstream(upstreamName string) []*RoutedTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tools := c.byUpstream[upstreamName]
	if tools == nil {
		return nil
	}
	out := make([]*RoutedTool, len(tools))
	copy(out, tools)
	return out
}

// RemoveUpstream drops every tool belonging to an upstream, e.g. on unmount.
func (c *ToolCache) RemoveUpstream(upstreamName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tools, ok := c.byUpstream[upstreamName]; ok {
		for _, t := range tools {
			delete(c.tools, Key(upstreamName, t.Name))
		}
	}
	delete(c.byUpstream, upstreamName)
}

// Count returns the total number of cached tools.
func (c *ToolCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

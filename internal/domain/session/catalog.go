package session

import "sync"

// ToolCatalog is a ChatSession's tool catalog: an ordered definition list
// plus a name index, built once per session from the upstreams the
// session's (optional) server allowlist admits (spec.md §3, §4.4).
type ToolCatalog struct {
	mu          sync.RWMutex
	definitions []CatalogEntry
	index       map[string]*CatalogEntry
}

// NewToolCatalog builds a catalog from entries, whose Name fields are
// assumed already sanitized and deduplicated by the caller (tool.Sanitize
// + tool.Deduper).
func NewToolCatalog(entries []CatalogEntry) *ToolCatalog {
	c := &ToolCatalog{
		definitions: append([]CatalogEntry(nil), entries...),
		index:       make(map[string]*CatalogEntry, len(entries)),
	}
	for i := range c.definitions {
		c.index[c.definitions[i].Name] = &c.definitions[i]
	}
	return c
}

// Definitions returns the full, ordered tool list as handed to the
// provider's function-calling schema.
func (c *ToolCatalog) Definitions() []CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CatalogEntry, len(c.definitions))
	copy(out, c.definitions)
	return out
}

// Lookup resolves a catalog name (as the provider echoes back in a
// tool_call) to its routing entry.
func (c *ToolCatalog) Lookup(name string) (CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.index[name]
	if !ok {
		return CatalogEntry{}, false
	}
	return *e, true
}

// Len reports the number of tools in the catalog.
func (c *ToolCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.definitions)
}

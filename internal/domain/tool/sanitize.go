package tool

import (
	"fmt"
	"strings"
)

// CatalogName builds the chat-facing tool name sanitize(upstream.tool)
// used as a flat catalog key across every connected upstream (spec.md
// §4.4): disallowed characters become `_`, and Dedup appends a numeric
// suffix on collision.
func CatalogName(upstreamName, toolName string) string {
	return Sanitize(upstreamName + "." + toolName)
}

// Sanitize replaces every character outside [A-Za-z0-9_-] with `_`. It
// never returns the empty string: an all-disallowed input sanitizes to a
// single `_`.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	return out
}

// Deduper assigns collision-free names by appending "_N" the second and
// later time a sanitized name is seen, matching the HTTP path router and
// the chat tool catalog's shared dedup behavior.
type Deduper struct {
	seen map[string]int
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: map[string]int{}}
}

// Next returns name unchanged the first time it's seen, and name_N on
// every subsequent collision.
func (d *Deduper) Next(name string) string {
	n, ok := d.seen[name]
	if !ok {
		d.seen[name] = 0
		return name
	}
	n++
	d.seen[name] = n
	return fmt.Sprintf("%s_%d", name, n)
}

// Package upstream contains domain types for MCP upstream server
// configuration and discovered tools.
package upstream

import (
	"fmt"
	"net/url"
	"regexp"
)

// Transport identifies the protocol used to reach an upstream MCP server.
type Transport string

const (
	// TransportStdio spawns the upstream as a subprocess and speaks MCP
	// over its stdin/stdout pipes.
	TransportStdio Transport = "stdio"
	// TransportSSE opens a persistent Server-Sent-Events MCP session.
	TransportSSE Transport = "sse"
	// TransportStreamableHTTP opens a streamable-HTTP MCP session.
	TransportStreamableHTTP Transport = "streamable-http"
)

// namePattern constrains upstream names to a safe, URL-path-friendly set.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

const nameMaxLength = 100

// Config describes one entry of the `mcpServers` map in the gateway config
// file (spec.md §3 UpstreamConfig). ${VAR} placeholders in Env/Headers have
// already been expanded by the config loader by the time this struct is
// built.
type Config struct {
	// Name is the map key this config was loaded under; unique across the
	// whole config file.
	Name string `json:"-"`

	Transport Transport `json:"transport"`

	// stdio
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// sse / streamable-http
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Validate enforces the invariants spec.md §3 places on UpstreamConfig:
// stdio requires a command, sse/streamable-http require a URL.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(c.Name) > nameMaxLength {
		return fmt.Errorf("name must be %d characters or less", nameMaxLength)
	}
	if !namePattern.MatchString(c.Name) {
		return fmt.Errorf("name contains invalid characters (allowed: alphanumeric, spaces, hyphens, underscores)")
	}

	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("command is required for stdio upstream %q", c.Name)
		}
	case TransportSSE, TransportStreamableHTTP:
		if c.URL == "" {
			return fmt.Errorf("url is required for %s upstream %q", c.Transport, c.Name)
		}
		parsed, err := url.Parse(c.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("url is not a valid URL for upstream %q", c.Name)
		}
	default:
		return fmt.Errorf("upstream %q: transport must be one of %q, %q, %q", c.Name, TransportStdio, TransportSSE, TransportStreamableHTTP)
	}
	return nil
}

// Equal reports whether two configs are deep-equal for hot-reload diffing
// purposes (spec.md §4.1 "to-update" set).
func (c *Config) Equal(other *Config) bool {
	if c.Transport != other.Transport || c.Command != other.Command || c.URL != other.URL {
		return false
	}
	if len(c.Args) != len(other.Args) {
		return false
	}
	for i := range c.Args {
		if c.Args[i] != other.Args[i] {
			return false
		}
	}
	if !mapsEqual(c.Env, other.Env) || !mapsEqual(c.Headers, other.Headers) {
		return false
	}
	return true
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

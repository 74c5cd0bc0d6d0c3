package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// upstreamsDocument is the on-disk shape of the mcpServers config file
// (spec.md §6 "Config file (JSON)").
type upstreamsDocument struct {
	McpServers map[string]upstreamEntry `json:"mcpServers"`
}

// upstreamEntry mirrors upstream.Config's JSON shape before name
// assignment and ${VAR} expansion.
type upstreamEntry struct {
	Transport upstream.Transport `json:"transport"`
	Command   string             `json:"command,omitempty"`
	Args      []string           `json:"args,omitempty"`
	Env       map[string]string  `json:"env,omitempty"`
	URL       string             `json:"url,omitempty"`
	Headers   map[string]string  `json:"headers,omitempty"`
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes every ${VAR} occurrence in s with the process
// environment's value for VAR, or "" if unset (spec.md §6).
func expandEnvVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// LoadUpstreams reads and parses the mcpServers JSON document at path,
// expanding ${VAR} placeholders in every env/header value, and returns the
// configs sorted by name for deterministic mount order.
func LoadUpstreams(path string) ([]*upstream.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read upstreams file: %w", err)
	}

	var doc upstreamsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse upstreams file: %w", err)
	}

	names := make([]string, 0, len(doc.McpServers))
	for name := range doc.McpServers {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]*upstream.Config, 0, len(names))
	for _, name := range names {
		entry := doc.McpServers[name]
		cfg := &upstream.Config{
			Name:      name,
			Transport: entry.Transport,
			Command:   entry.Command,
			Args:      append([]string(nil), entry.Args...),
			URL:       entry.URL,
		}
		if entry.Env != nil {
			cfg.Env = make(map[string]string, len(entry.Env))
			for k, v := range entry.Env {
				cfg.Env[k] = expandEnvVars(v)
			}
		}
		if entry.Headers != nil {
			cfg.Headers = make(map[string]string, len(entry.Headers))
			for k, v := range entry.Headers {
				cfg.Headers[k] = expandEnvVars(v)
			}
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: upstream %q: %w", name, err)
		}
		configs = append(configs, cfg)
	}

	return configs, nil
}

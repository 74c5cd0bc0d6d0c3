// Package config provides configuration types for the MCP gateway.
//
// The gateway's own runtime settings (listener addresses, timeouts,
// read-only mode, provider credentials) are YAML/env configured via Viper.
// Upstream MCP servers are NOT part of this file — they live in a separate
// JSON "mcpServers" document loaded by upstreams.go (spec.md §6).
package config

// GatewayConfig is the top-level runtime configuration.
type GatewayConfig struct {
	// Server configures the main HTTP port and the raw MCP proxy port.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Timeouts configures the default and maximum tool-call timeout.
	Timeouts TimeoutConfig `yaml:"timeouts" mapstructure:"timeouts"`

	// LogBuffer sizes the process-global log ring buffers.
	LogBuffer LogBufferConfig `yaml:"log_buffer" mapstructure:"log_buffer"`

	// Providers configures the five supported chat-completion backends.
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`

	// Audit configures the optional durable tool-call audit trail, an
	// alternative to the in-memory log ring buffer for the "audit" log
	// category.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Tracing configures OpenTelemetry span export. Disabled by default.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// DevMode enables verbose logging and permissive defaults.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// TracingConfig controls the stdout OpenTelemetry trace exporter wrapping
// Runner tool-call execution and provider calls.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// ServerConfig configures the gateway's two HTTP listeners: the main
// synthesized-OpenAPI + chat port, and the raw MCP proxy port
// (spec.md §6 "HTTP surface" / "Raw MCP port").
type ServerConfig struct {
	// HTTPAddr is the main port's listen address.
	// Defaults to "127.0.0.1:8080" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// MCPAddr is the raw MCP proxy port's listen address.
	// Defaults to "127.0.0.1:8081" if empty.
	MCPAddr string `yaml:"mcp_addr" mapstructure:"mcp_addr" validate:"omitempty,hostname_port"`

	// MCPBasePath is the base path the raw MCP port mounts the aggregate
	// endpoint under, with one additional mount per upstream
	// (spec.md §6 "Raw MCP port"). Defaults to "/mcp".
	MCPBasePath string `yaml:"mcp_base_path" mapstructure:"mcp_base_path"`

	// LogLevel sets the minimum log level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// ReadOnly rejects every mutating /_meta/* request with
	// 403 {code:"read_only"} (spec.md §6 "Read-only mode").
	ReadOnly bool `yaml:"read_only" mapstructure:"read_only"`

	// ProtocolVersionMode controls how a missing or mismatched
	// MCP-Protocol-Version header on the main port's synthesized tool
	// routes is handled: "enforce" (426), "warn" (log and continue), or
	// "off" (spec.md §8 scenario 6).
	ProtocolVersionMode string `yaml:"protocol_version_mode" mapstructure:"protocol_version_mode" validate:"omitempty,oneof=enforce warn off"`

	// ValidateOutputMode controls what happens when a tool's declared
	// OutputSchema doesn't match the Runner's result: "enforce" (502
	// output_validation), "warn" (log and return the result anyway), or
	// "off" (spec.md §4.2 "Output schema... validation failure becomes
	// 502 output_validation").
	ValidateOutputMode string `yaml:"validate_output_mode" mapstructure:"validate_output_mode" validate:"omitempty,oneof=enforce warn off"`

	// ConfigPath is the path to the mcpServers JSON document. The state
	// file is written alongside it with suffix "_state.json"
	// (spec.md §6 "State file").
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// TimeoutConfig bounds a tool call's per-request timeout override
// (spec.md §8 scenarios 2-4: X-Tool-Timeout header / ?timeout query).
type TimeoutConfig struct {
	// Default is used when a request specifies no timeout (e.g. "30s").
	Default string `yaml:"default" mapstructure:"default" validate:"omitempty"`

	// Max is the largest timeout a request may ask for; a larger request
	// value fails with error code "invalid_timeout".
	Max string `yaml:"max" mapstructure:"max" validate:"omitempty"`
}

// LogBufferConfig sizes the two log ring buffers (spec.md §3 LogEntry:
// "bounded ring buffer (≥ 100 for the main app, ≥ 2000 for the proxy)").
type LogBufferConfig struct {
	MainCapacity int `yaml:"main_capacity" mapstructure:"main_capacity" validate:"omitempty,min=100"`
	ProxyCapacity int `yaml:"proxy_capacity" mapstructure:"proxy_capacity" validate:"omitempty,min=2000"`
}

// AuditConfig configures the optional durable audit trail. Disabled by
// default. Backend selects between "file" (one JSON-Lines file per day
// under Dir) and "sqlite" (a single database under SQLitePath); both
// implement the same audit.AuditStore interface.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	Backend       string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=file sqlite"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`
	CacheSize     int    `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`
	SQLitePath    string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ProvidersConfig configures the five supported chat-completion backends
// (spec.md §6 "Environment variables", C8). API keys are always read from
// environment variables, never from the config file.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `yaml:"openai" mapstructure:"openai"`
	OpenRouter ProviderConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Anthropic  ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Google     ProviderConfig `yaml:"google" mapstructure:"google"`
	MiniMax    ProviderConfig `yaml:"minimax" mapstructure:"minimax"`
}

// ProviderConfig tunes one provider adapter's transport; the API key
// itself always comes from the matching environment variable.
type ProviderConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Timeout    string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries" validate:"omitempty,min=0"`
}

// SetDefaults applies sensible default values, leaving anything already
// set by YAML/env untouched.
func (c *GatewayConfig) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.MCPAddr == "" {
		c.Server.MCPAddr = "127.0.0.1:8081"
	}
	if c.Server.MCPBasePath == "" {
		c.Server.MCPBasePath = "/mcp"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ProtocolVersionMode == "" {
		c.Server.ProtocolVersionMode = "warn"
	}
	if c.Server.ValidateOutputMode == "" {
		c.Server.ValidateOutputMode = "warn"
	}
	if c.Server.ConfigPath == "" {
		c.Server.ConfigPath = "gateway.config.json"
	}

	if c.Timeouts.Default == "" {
		c.Timeouts.Default = "30s"
	}
	if c.Timeouts.Max == "" {
		c.Timeouts.Max = "300s"
	}

	if c.LogBuffer.MainCapacity == 0 {
		c.LogBuffer.MainCapacity = 500
	}
	if c.LogBuffer.ProxyCapacity == 0 {
		c.LogBuffer.ProxyCapacity = 2000
	}

	if c.Audit.Backend == "" {
		c.Audit.Backend = "file"
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = "audit"
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 7
	}
	if c.Audit.MaxFileSizeMB == 0 {
		c.Audit.MaxFileSizeMB = 100
	}
	if c.Audit.CacheSize == 0 {
		c.Audit.CacheSize = 1000
	}
	if c.Audit.SQLitePath == "" {
		c.Audit.SQLitePath = "audit/audit.db"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "mcp-gateway"
	}

	setProviderDefaults(&c.Providers.OpenAI, "https://api.openai.com/v1")
	setProviderDefaults(&c.Providers.OpenRouter, "https://openrouter.ai/api/v1")
	setProviderDefaults(&c.Providers.Anthropic, "https://api.anthropic.com/v1")
	setProviderDefaults(&c.Providers.Google, "https://generativelanguage.googleapis.com/v1beta")
	setProviderDefaults(&c.Providers.MiniMax, "https://api.minimax.chat/v1")
}

func setProviderDefaults(p *ProviderConfig, defaultBaseURL string) {
	if p.BaseURL == "" {
		p.BaseURL = defaultBaseURL
	}
	if p.Timeout == "" {
		p.Timeout = "60s"
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 2
	}
}

// SetDevDefaults applies permissive defaults for development mode,
// applied before validation so the gateway can run with minimal config.
func (c *GatewayConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
}

// Package session implements the Agentic Chat Orchestrator's in-memory
// ChatSession (spec.md §3): message history, tool-call steps, and the
// per-session tool catalog. Sessions are never persisted — delete is
// immediate and a process restart discards them all.
package session

import (
	"encoding/json"
	"time"
)

// Role is one of the four roles spec.md §3 allows in a ChatSession's
// message history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function-call request an assistant message attaches
// when the provider wants a tool executed.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ReasoningDetail is one element of an assistant message's
// reasoning_details array, merged across streaming deltas by (ID|Index)
// (spec.md §3, §9 "reasoning preservation").
type ReasoningDetail struct {
	ID        string `json:"id,omitempty"`
	Index     int    `json:"index"`
	Type      string `json:"type,omitempty"`
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Message is one entry of a ChatSession's ordered history. Only the
// fields relevant to Role are populated; others stay zero.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// assistant
	ToolCalls        []ToolCall        `json:"tool_calls,omitempty"`
	ReasoningContent string            `json:"reasoning_content,omitempty"`
	ReasoningDetails []ReasoningDetail `json:"reasoning_details,omitempty"`
	// ProviderState carries an opaque, provider-specific continuation
	// blob (e.g. Anthropic's encrypted thinking signature) round-tripped
	// verbatim on the next turn without the gateway interpreting it.
	ProviderState json.RawMessage `json:"provider_state,omitempty"`

	// tool
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"name,omitempty"`
}

// Step records one iteration of the orchestrator's tool-calling loop:
// a tool invocation and its outcome, kept for the transcript the chat
// surface can replay to a client (spec.md §4.3 "ordered step list").
type Step struct {
	Index      int             `json:"index"`
	ToolCallID string          `json:"tool_call_id"`
	UpstreamID string          `json:"upstream"`
	ToolName   string          `json:"tool"`
	Arguments  json.RawMessage `json:"arguments"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// CatalogEntry is one tool a ChatSession can offer the provider: its
// sanitized, flat catalog name plus enough to route and describe a call
// (spec.md §4.4).
type CatalogEntry struct {
	Name         string          `json:"name"`
	UpstreamName string          `json:"upstream"`
	ToolName     string          `json:"tool"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
}

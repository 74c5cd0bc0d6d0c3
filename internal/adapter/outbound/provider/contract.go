// Package provider implements the Provider Adapters (C8): a single
// Complete/Stream contract in front of five backends (OpenAI, OpenRouter,
// Anthropic, MiniMax, Google Gemini), each preserving that provider's
// reasoning/thinking surface across a round trip (spec.md §4.5).
package provider

import (
	"context"
	"encoding/json"
)

// Kind discriminates which backend an Adapter talks to.
type Kind string

const (
	KindOpenAI     Kind = "openai"
	KindOpenRouter Kind = "openrouter"
	KindAnthropic  Kind = "anthropic"
	KindMiniMax    Kind = "minimax"
	KindGoogle     Kind = "google"
)

// Role mirrors session.Role without importing the session package, so this
// adapter layer stays independent of the orchestrator's in-memory model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function-call the assistant asked for.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // always a JSON string, never raw object (spec.md §4.4 normalization)
}

// ReasoningDetail mirrors session.ReasoningDetail for the same reason Role
// does.
type ReasoningDetail struct {
	ID        string
	Index     int
	Type      string
	Text      string
	Signature string
}

// Message is one chat turn, provider-agnostic.
type Message struct {
	Role    Role
	Content string

	ToolCalls        []ToolCall
	ReasoningContent string
	ReasoningDetails []ReasoningDetail
	ProviderState    json.RawMessage

	ToolCallID string
	ToolName   string
}

// ToolDefinition is one entry of a session's catalog, translated into
// each provider's function-calling wire shape.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema object
}

// ReasoningHints carries the provider-specific knobs spec.md §4.5 lists:
// OpenRouter's include_reasoning/reasoning_effort, Anthropic/MiniMax's
// thinking_budget, Google's thinkingBudget, OpenAI's reasoning_effort and
// Responses-API summary mode. Zero value means "let the provider default".
type ReasoningHints struct {
	Effort          string // "low", "medium", "high", "minimal"
	IncludeReasoning bool
	ThinkingBudget  int
	Summary         string
}

// Request is the unified call shape both Complete and Stream accept.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature *float32
	MaxTokens   int
	Reasoning   ReasoningHints

	// CachedContentHandle, when set, names a previously created Gemini
	// cachedContent resource the orchestrator wants this call to ride
	// instead of inlining the system prompt (spec.md §4.5 Google Gemini
	// row); ignored by every adapter but GoogleAdapter.
	CachedContentHandle string
}

// Usage reports token accounting, when the backend provides it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is one non-streaming chat completion outcome.
type Response struct {
	Message      Message
	FinishReason string
	Usage        Usage
}

// ChunkKind discriminates the fields a StreamChunk carries.
type ChunkKind string

const (
	ChunkMessageDelta   ChunkKind = "message.delta"
	ChunkReasoningDelta ChunkKind = "reasoning.delta"
	ChunkToolCallDelta  ChunkKind = "tool.call.delta"
	ChunkDone           ChunkKind = "done"
)

// StreamChunk is one element of a Stream call's output sequence, already
// folded from the provider's SSE/line-delimited wire format into a
// provider-agnostic shape the orchestrator merges into its ChatSession.
type StreamChunk struct {
	Kind ChunkKind

	ContentDelta   string
	ReasoningDelta ReasoningDetail

	ToolCallIndex int
	ToolCallID    string
	ToolCallName  string
	ArgumentDelta string

	FinishReason string
	Usage        Usage
	Err          error
}

// Adapter is the contract every provider backend implements (spec.md §4.5
// "Unified contract").
type Adapter interface {
	Kind() Kind
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

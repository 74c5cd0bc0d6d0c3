package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// anthropicMinThinkingBudget is the API's documented floor for an extended
// thinking budget (spec.md §4.5 "≥1024").
const anthropicMinThinkingBudget = 1024

const anthropicVersion = "2023-06-01"

// AnthropicAdapter implements Adapter against the Anthropic Messages API,
// reconstructing `thinking`/`redacted_thinking` blocks from a saved
// thought_signature and optionally marking user text blocks with
// cache_control breakpoints (spec.md §4.5 Anthropic row). MiniMax routes
// through this same adapter against an Anthropic-compatible endpoint with
// prompt-caching disabled (spec.md §4.5 MiniMax row).
type AnthropicAdapter struct {
	kind           Kind
	http           *http.Client
	apiKey         string
	base           string
	promptCaching  bool
}

// NewAnthropicAdapter builds the adapter. When promptCaching is false (the
// MiniMax case) cache_control markers are never emitted.
func NewAnthropicAdapter(kind Kind, apiKey, baseURL string, promptCaching bool, httpClient *http.Client) *AnthropicAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &AnthropicAdapter{
		kind:          kind,
		http:          httpClient,
		apiKey:        apiKey,
		base:          strings.TrimSuffix(baseURL, "/"),
		promptCaching: promptCaching,
	}
}

func (a *AnthropicAdapter) Kind() Kind { return a.kind }

type anthropicContentBlock struct {
	Type         string          `json:"type"`
	Text         string          `json:"text,omitempty"`
	Thinking     string          `json:"thinking,omitempty"`
	Signature    string          `json:"signature,omitempty"`
	Data         string          `json:"data,omitempty"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	Content      string          `json:"content,omitempty"`
	CacheControl *cacheControl   `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type anthropicRequest struct {
	Model     string                  `json:"model"`
	System    string                  `json:"system,omitempty"`
	Messages  []anthropicMessage      `json:"messages"`
	MaxTokens int                     `json:"max_tokens"`
	Thinking  *anthropicThinking      `json:"thinking,omitempty"`
	Tools     []anthropicTool         `json:"tools,omitempty"`
	Stream    bool                    `json:"stream,omitempty"`
	Temp      *float32                `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicAdapter) buildRequest(req Request, stream bool) anthropicRequest {
	var system string
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		msgs = append(msgs, a.toAnthropicMessage(m))
	}

	out := anthropicRequest{
		Model:     req.Model,
		System:    system,
		Messages:  msgs,
		MaxTokens: maxTokensOrDefault(req.MaxTokens),
		Stream:    stream,
		Temp:      req.Temperature,
	}
	if req.Reasoning.ThinkingBudget > 0 {
		budget := req.Reasoning.ThinkingBudget
		if budget < anthropicMinThinkingBudget {
			budget = anthropicMinThinkingBudget
		}
		out.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: budget}
	}
	for _, d := range req.Tools {
		out.Tools = append(out.Tools, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: d.Parameters})
	}
	return out
}

func maxTokensOrDefault(n int) int {
	if n > 0 {
		return n
	}
	return 4096
}

func (a *AnthropicAdapter) toAnthropicMessage(m Message) anthropicMessage {
	role := string(m.Role)
	if m.Role == RoleTool {
		role = "user"
		return anthropicMessage{Role: role, Content: []anthropicContentBlock{
			{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content},
		}}
	}

	var blocks []anthropicContentBlock
	if m.Role == RoleAssistant && len(m.ReasoningDetails) > 0 {
		for _, rd := range m.ReasoningDetails {
			sig := rd.Signature
			if sig == "" && len(m.ProviderState) > 0 {
				_ = json.Unmarshal(m.ProviderState, &sig)
			}
			if sig != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "thinking", Thinking: rd.Text, Signature: sig})
			} else {
				blocks = append(blocks, anthropicContentBlock{Type: "redacted_thinking", Data: rd.Text})
			}
		}
	}
	if m.Content != "" {
		block := anthropicContentBlock{Type: "text", Text: m.Content}
		if a.promptCaching && m.Role == RoleUser {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		blocks = append(blocks, block)
	}
	for _, tc := range m.ToolCalls {
		blocks = append(blocks, anthropicContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: json.RawMessage(tc.Arguments)})
	}
	return anthropicMessage{Role: role, Content: blocks}
}

func fromAnthropicContent(blocks []anthropicContentBlock) Message {
	msg := Message{Role: RoleAssistant}
	for _, b := range blocks {
		switch b.Type {
		case "text":
			msg.Content += b.Text
		case "thinking":
			msg.ReasoningDetails = append(msg.ReasoningDetails, ReasoningDetail{Type: "thinking", Text: b.Thinking, Signature: b.Signature})
			if b.Signature != "" {
				sig, _ := json.Marshal(b.Signature)
				msg.ProviderState = sig
			}
		case "redacted_thinking":
			msg.ReasoningDetails = append(msg.ReasoningDetails, ReasoningDetail{Type: "redacted_thinking", Text: b.Data})
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Arguments: normalizeArguments(string(b.Input))})
		}
	}
	return msg
}

func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	body := a.buildRequest(req, false)
	var parsed anthropicResponse
	err := withRetry(ctx, isRetryableHTTPError, isNetworkError, func() error {
		return a.doJSON(ctx, body, &parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("provider: %s completion: %w", a.kind, err)
	}
	return &Response{
		Message:      fromAnthropicContent(parsed.Content),
		FinishReason: parsed.StopReason,
		Usage:        Usage{PromptTokens: parsed.Usage.InputTokens, CompletionTokens: parsed.Usage.OutputTokens, TotalTokens: parsed.Usage.InputTokens + parsed.Usage.OutputTokens},
	}, nil
}

// anthropicSSEEvent is the subset of Anthropic's streaming event envelope
// this adapter folds into StreamChunks.
type anthropicSSEEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		Thinking    string `json:"thinking"`
		Signature   string `json:"signature"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
}

func (a *AnthropicAdapter) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	body := a.buildRequest(req, true)
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/messages", strings.NewReader(string(buf)))
	if err != nil {
		return nil, err
	}
	a.setHeaders(httpReq)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider: %s stream: %w", a.kind, err)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("provider: %s stream: %w", a.kind, &statusError{Code: resp.StatusCode, Body: string(data)})
	}

	out := make(chan StreamChunk, 16)
	go a.relaySSE(ctx, resp.Body, out)
	return out, nil
}

func (a *AnthropicAdapter) relaySSE(ctx context.Context, body io.ReadCloser, out chan<- StreamChunk) {
	defer close(out)
	defer body.Close()

	toolIndex := -1
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var ev anthropicSSEEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock.Type == "tool_use" {
				toolIndex = ev.Index
				emit(ctx, out, StreamChunk{Kind: ChunkToolCallDelta, ToolCallIndex: ev.Index, ToolCallID: ev.ContentBlock.ID, ToolCallName: ev.ContentBlock.Name})
			}
		case "content_block_delta":
			switch ev.Delta.Type {
			case "text_delta":
				emit(ctx, out, StreamChunk{Kind: ChunkMessageDelta, ContentDelta: ev.Delta.Text})
			case "thinking_delta":
				emit(ctx, out, StreamChunk{Kind: ChunkReasoningDelta, ReasoningDelta: ReasoningDetail{Index: ev.Index, Text: ev.Delta.Thinking}})
			case "signature_delta":
				emit(ctx, out, StreamChunk{Kind: ChunkReasoningDelta, ReasoningDelta: ReasoningDetail{Index: ev.Index, Signature: ev.Delta.Signature}})
			case "input_json_delta":
				emit(ctx, out, StreamChunk{Kind: ChunkToolCallDelta, ToolCallIndex: toolIndex, ArgumentDelta: ev.Delta.PartialJSON})
			}
		case "message_delta":
			if ev.Delta.StopReason != "" {
				emit(ctx, out, StreamChunk{Kind: ChunkDone, FinishReason: ev.Delta.StopReason})
				return
			}
		case "message_stop":
			emit(ctx, out, StreamChunk{Kind: ChunkDone, FinishReason: "stop"})
			return
		}
	}
	if err := scanner.Err(); err != nil {
		emit(ctx, out, StreamChunk{Kind: ChunkDone, Err: fmt.Errorf("provider: %s stream read: %w", a.kind, err)})
		return
	}
	emit(ctx, out, StreamChunk{Kind: ChunkDone, FinishReason: "stop"})
}

func (a *AnthropicAdapter) setHeaders(r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("x-api-key", a.apiKey)
	r.Header.Set("anthropic-version", anthropicVersion)
}

func (a *AnthropicAdapter) doJSON(ctx context.Context, body anthropicRequest, out *anthropicResponse) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/messages", strings.NewReader(string(buf)))
	if err != nil {
		return err
	}
	a.setHeaders(httpReq)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &statusError{Code: resp.StatusCode, Body: string(data)}
	}
	return json.Unmarshal(data, out)
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sdkopenai "github.com/sashabaranov/go-openai"
)

// responsesAPIPrefixes lists the OpenAI model families that must be called
// through the Responses API rather than Chat Completions (spec.md §4.5
// OpenAI row).
var responsesAPIPrefixes = []string{"o1-pro", "o3", "o4", "gpt-5", "codex"}

func usesResponsesAPI(model string) bool {
	for _, p := range responsesAPIPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// OpenAIAdapter implements Adapter against the OpenAI Chat Completions /
// Responses APIs, and doubles as the OpenRouter adapter since OpenRouter
// speaks the same wire protocol with a different base URL and an extra
// reasoning field (spec.md §4.5 OpenRouter row).
type OpenAIAdapter struct {
	kind   Kind
	client *sdkopenai.Client
	http   *http.Client
	apiKey string
	base   string
}

// NewOpenAIAdapter builds the OpenAI-compatible adapter. kind selects
// OpenAI-vs-OpenRouter-specific request shaping; baseURL overrides the
// default OpenAI endpoint (OpenRouter's is https://openrouter.ai/api/v1).
func NewOpenAIAdapter(kind Kind, apiKey, baseURL string, httpClient *http.Client) *OpenAIAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	cfg := sdkopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = httpClient
	return &OpenAIAdapter{
		kind:   kind,
		client: sdkopenai.NewClientWithConfig(cfg),
		http:   httpClient,
		apiKey: apiKey,
		base:   strings.TrimSuffix(baseURL, "/"),
	}
}

func (a *OpenAIAdapter) Kind() Kind { return a.kind }

func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if a.kind == KindOpenAI && usesResponsesAPI(req.Model) {
		return a.completeResponsesAPI(ctx, req)
	}

	creq := a.buildChatRequest(req, false)
	var resp sdkopenai.ChatCompletionResponse
	err := withRetry(ctx, isRetryableHTTPError, isNetworkError, func() error {
		var callErr error
		resp, callErr = a.client.CreateChatCompletion(ctx, creq)
		return wrapOpenAIErr(callErr)
	})
	if err != nil {
		return nil, fmt.Errorf("provider: %s completion: %w", a.kind, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider: %s returned no choices", a.kind)
	}
	choice := resp.Choices[0]
	return &Response{
		Message:      messageFromChoice(choice.Message),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (a *OpenAIAdapter) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	creq := a.buildChatRequest(req, true)

	var stream *sdkopenai.ChatCompletionStream
	err := withRetry(ctx, isRetryableHTTPError, isNetworkError, func() error {
		var callErr error
		stream, callErr = a.client.CreateChatCompletionStream(ctx, creq)
		return wrapOpenAIErr(callErr)
	})
	if err != nil {
		return nil, fmt.Errorf("provider: %s stream: %w", a.kind, err)
	}

	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)
		defer stream.Close()

		sawFinish := false
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				select {
				case out <- StreamChunk{Kind: ChunkDone, Err: fmt.Errorf("provider: %s stream recv: %w", a.kind, err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			delta := choice.Delta

			if rc := reasoningDeltaOf(delta); rc != "" {
				emit(ctx, out, StreamChunk{Kind: ChunkReasoningDelta, ReasoningDelta: ReasoningDetail{Index: 0, Text: rc}})
			}
			if delta.Content != "" {
				emit(ctx, out, StreamChunk{Kind: ChunkMessageDelta, ContentDelta: delta.Content})
			}
			for i, tc := range delta.ToolCalls {
				idx := i
				if tc.Index != nil {
					idx = *tc.Index
				}
				emit(ctx, out, StreamChunk{
					Kind:          ChunkToolCallDelta,
					ToolCallIndex: idx,
					ToolCallID:    tc.ID,
					ToolCallName:  tc.Function.Name,
					ArgumentDelta: tc.Function.Arguments,
				})
			}
			if choice.FinishReason != "" {
				sawFinish = true
				emit(ctx, out, StreamChunk{Kind: ChunkDone, FinishReason: string(choice.FinishReason)})
			}
		}
		if !sawFinish {
			emit(ctx, out, StreamChunk{Kind: ChunkDone, FinishReason: "stop"})
		}
	}()
	return out, nil
}

func emit(ctx context.Context, out chan<- StreamChunk, c StreamChunk) {
	select {
	case out <- c:
	case <-ctx.Done():
	}
}

// reasoningDeltaOf extracts whichever reasoning field the SDK's delta
// struct happens to carry (go-openai surfaces DeepSeek/OpenRouter-style
// reasoning_content verbatim).
func reasoningDeltaOf(delta sdkopenai.ChatCompletionStreamChoiceDelta) string {
	return delta.ReasoningContent
}

func (a *OpenAIAdapter) buildChatRequest(req Request, stream bool) sdkopenai.ChatCompletionRequest {
	creq := sdkopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toSDKMessages(req.Messages),
		Tools:    toSDKTools(req.Tools),
		Stream:   stream,
	}
	if req.Temperature != nil {
		creq.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		creq.MaxTokens = req.MaxTokens
	}
	if req.Reasoning.Effort != "" {
		creq.ReasoningEffort = req.Reasoning.Effort
	}
	return creq
}

func toSDKMessages(msgs []Message) []sdkopenai.ChatCompletionMessage {
	out := make([]sdkopenai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		sm := sdkopenai.ChatCompletionMessage{
			Role:             string(m.Role),
			Content:          m.Content,
			ReasoningContent: m.ReasoningContent,
			ToolCallID:       m.ToolCallID,
			Name:             m.ToolName,
		}
		for _, tc := range m.ToolCalls {
			sm.ToolCalls = append(sm.ToolCalls, sdkopenai.ToolCall{
				ID:   tc.ID,
				Type: sdkopenai.ToolTypeFunction,
				Function: sdkopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, sm)
	}
	return out
}

func toSDKTools(defs []ToolDefinition) []sdkopenai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdkopenai.Tool, 0, len(defs))
	for _, d := range defs {
		var params any
		if len(d.Parameters) > 0 {
			_ = json.Unmarshal(d.Parameters, &params)
		}
		out = append(out, sdkopenai.Tool{
			Type: sdkopenai.ToolTypeFunction,
			Function: &sdkopenai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func messageFromChoice(m sdkopenai.ChatCompletionMessage) Message {
	out := Message{
		Role:             RoleAssistant,
		Content:          m.Content,
		ReasoningContent: m.ReasoningContent,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: normalizeArguments(tc.Function.Arguments),
		})
	}
	return out
}

// normalizeArguments guarantees a JSON-string value per spec.md §4.4:
// malformed JSON is wrapped as {"raw": "<original>"} rather than dropped.
func normalizeArguments(raw string) string {
	var v any
	if raw == "" {
		return "{}"
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		wrapped, _ := json.Marshal(map[string]string{"raw": raw})
		return string(wrapped)
	}
	return raw
}

func wrapOpenAIErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sdkopenai.APIError
	if errors.As(err, &apiErr) {
		return &statusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	return err
}

// responsesAPIRequest/Response are the minimal subset of OpenAI's
// Responses API this adapter needs: a model, an input turn list, the
// reasoning effort/summary hints, and the output items it returns (text
// plus a reasoning item whose encrypted content round-trips as
// ProviderState). go-openai does not expose this endpoint, so it's called
// directly (see DESIGN.md).
type responsesAPIRequest struct {
	Model     string                 `json:"model"`
	Input     []responsesAPIItem     `json:"input"`
	Reasoning *responsesAPIReasoning `json:"reasoning,omitempty"`
	Tools     []responsesAPITool     `json:"tools,omitempty"`
}

type responsesAPIReasoning struct {
	Effort  string `json:"effort,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type responsesAPIItem struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type responsesAPITool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type responsesAPIResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Text    string `json:"text,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content,omitempty"`
		EncryptedContent string `json:"encrypted_content,omitempty"`
	} `json:"output"`
}

func (a *OpenAIAdapter) completeResponsesAPI(ctx context.Context, req Request) (*Response, error) {
	body := responsesAPIRequest{
		Model: req.Model,
		Reasoning: &responsesAPIReasoning{
			Effort:  req.Reasoning.Effort,
			Summary: req.Reasoning.Summary,
		},
	}
	for _, m := range req.Messages {
		if m.Content == "" {
			continue
		}
		body.Input = append(body.Input, responsesAPIItem{Type: "message", Role: string(m.Role), Content: m.Content})
	}
	for _, d := range req.Tools {
		body.Tools = append(body.Tools, responsesAPITool{Type: "function", Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}

	var parsed responsesAPIResponse
	err := withRetry(ctx, isRetryableHTTPError, isNetworkError, func() error {
		return a.postJSON(ctx, "/responses", body, &parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("provider: openai responses: %w", err)
	}

	msg := Message{Role: RoleAssistant}
	for _, item := range parsed.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				msg.Content += c.Text
			}
		case "reasoning":
			msg.ReasoningDetails = append(msg.ReasoningDetails, ReasoningDetail{Type: "reasoning", Text: item.Text})
			if item.EncryptedContent != "" {
				msg.ProviderState = json.RawMessage(`"` + item.EncryptedContent + `"`)
			}
		}
	}
	return &Response{Message: msg, FinishReason: "stop"}, nil
}

func (a *OpenAIAdapter) postJSON(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+path, strings.NewReader(string(buf)))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

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

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

// GoogleAdapter implements Adapter against the Gemini generateContent /
// streamGenerateContent APIs, applying the model-aware thinkingBudget
// rules and preserving thoughtSignature across turns (spec.md §4.5 Google
// Gemini row).
type GoogleAdapter struct {
	http   *http.Client
	apiKey string
	base   string
}

// NewGoogleAdapter builds the adapter. baseURL defaults to the public
// Generative Language API.
func NewGoogleAdapter(apiKey, baseURL string, httpClient *http.Client) *GoogleAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GoogleAdapter{http: httpClient, apiKey: apiKey, base: strings.TrimSuffix(baseURL, "/")}
}

func (a *GoogleAdapter) Kind() Kind { return KindGoogle }

// resolveThinkingBudget applies spec.md §4.5's model-aware rule: Flash
// models accept 0 (off), -1 (dynamic), or 1..24576; Pro models accept -1
// or a positive value but never 0 (thinking cannot be disabled).
func resolveThinkingBudget(model string, requested int) int {
	isFlash := strings.Contains(model, "flash")
	if isFlash {
		if requested < -1 {
			return -1
		}
		if requested > 24576 {
			return 24576
		}
		return requested
	}
	// Pro family: never 0.
	if requested == 0 {
		return -1
	}
	return requested
}

type googlePart struct {
	Text             string          `json:"text,omitempty"`
	ThoughtSignature string          `json:"thoughtSignature,omitempty"`
	Thought          bool            `json:"thought,omitempty"`
	FunctionCall     *googleFnCall   `json:"functionCall,omitempty"`
	FunctionResponse *googleFnResult `json:"functionResponse,omitempty"`
}

type googleFnCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type googleFnResult struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleThinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts,omitempty"`
}

type googleGenConfig struct {
	Temperature     *float32              `json:"temperature,omitempty"`
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *googleThinkingConfig `json:"thinkingConfig,omitempty"`
}

type googleFnDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type googleTool struct {
	FunctionDeclarations []googleFnDecl `json:"functionDeclarations"`
}

type googleRequest struct {
	SystemInstruction *googleContent   `json:"systemInstruction,omitempty"`
	Contents          []googleContent  `json:"contents"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
	Tools             []googleTool     `json:"tools,omitempty"`
	CachedContent     string           `json:"cachedContent,omitempty"`
}

// cachedContentName resolves which cachedContent handle (if any) a system
// prompt this long should ride instead of being inlined on every call
// (spec.md §4.5 "accepts large cachedContent for >2048-char systems").
// Creating/refreshing that handle via the cachedContents API is the
// orchestrator's job (it owns the handle's lifetime across turns); this
// adapter only forwards whatever name it's given.
func (a *GoogleAdapter) cachedContentName(systemPrompt string, handle string) string {
	if handle == "" || len(systemPrompt) <= googleCachedContentThreshold {
		return ""
	}
	return handle
}

type googleResponse struct {
	Candidates []struct {
		Content      googleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// googleCachedContentThreshold is the system-prompt length above which the
// large-context cachedContent path is worth using (spec.md §4.5 "accepts
// large cachedContent for >2048-char systems").
const googleCachedContentThreshold = 2048

func (a *GoogleAdapter) buildRequest(req Request) googleRequest {
	var system *googleContent
	var systemText string
	contents := make([]googleContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			systemText = m.Content
			system = &googleContent{Parts: []googlePart{{Text: m.Content}}}
			continue
		}
		contents = append(contents, a.toGoogleContent(m))
	}

	out := googleRequest{SystemInstruction: system, Contents: contents}
	if name := a.cachedContentName(systemText, req.CachedContentHandle); name != "" {
		out.SystemInstruction = nil
		out.CachedContent = name
	}
	budget := resolveThinkingBudget(req.Model, req.Reasoning.ThinkingBudget)
	genConfig := &googleGenConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
		ThinkingConfig:  &googleThinkingConfig{ThinkingBudget: budget, IncludeThoughts: true},
	}
	out.GenerationConfig = genConfig

	if len(req.Tools) > 0 {
		decls := make([]googleFnDecl, 0, len(req.Tools))
		for _, d := range req.Tools {
			decls = append(decls, googleFnDecl{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
		}
		out.Tools = []googleTool{{FunctionDeclarations: decls}}
	}
	return out
}

func (a *GoogleAdapter) toGoogleContent(m Message) googleContent {
	role := "user"
	if m.Role == RoleAssistant {
		role = "model"
	}

	var parts []googlePart
	if m.Role == RoleTool {
		var resp json.RawMessage
		_ = json.Unmarshal([]byte(m.Content), &resp)
		if resp == nil {
			resp, _ = json.Marshal(m.Content)
		}
		return googleContent{Role: "user", Parts: []googlePart{{FunctionResponse: &googleFnResult{Name: m.ToolName, Response: resp}}}}
	}

	for _, rd := range m.ReasoningDetails {
		sig := rd.Signature
		if sig == "" && len(m.ProviderState) > 0 {
			_ = json.Unmarshal(m.ProviderState, &sig)
		}
		parts = append(parts, googlePart{Text: rd.Text, Thought: true, ThoughtSignature: sig})
	}
	if m.Content != "" {
		parts = append(parts, googlePart{Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		parts = append(parts, googlePart{FunctionCall: &googleFnCall{Name: tc.Name, Args: json.RawMessage(tc.Arguments)}})
	}
	return googleContent{Role: role, Parts: parts}
}

func fromGoogleContent(c googleContent) Message {
	msg := Message{Role: RoleAssistant}
	for _, p := range c.Parts {
		switch {
		case p.FunctionCall != nil:
			args, _ := json.Marshal(p.FunctionCall.Args)
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{Name: p.FunctionCall.Name, Arguments: normalizeArguments(string(args))})
		case p.Thought:
			msg.ReasoningDetails = append(msg.ReasoningDetails, ReasoningDetail{Type: "thought", Text: p.Text, Signature: p.ThoughtSignature})
			if p.ThoughtSignature != "" {
				sig, _ := json.Marshal(p.ThoughtSignature)
				msg.ProviderState = sig
			}
		default:
			msg.Content += p.Text
		}
	}
	return msg
}

func (a *GoogleAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	body := a.buildRequest(req)
	var parsed googleResponse
	err := withRetry(ctx, isRetryableHTTPError, isNetworkError, func() error {
		return a.postJSON(ctx, "generateContent", req.Model, body, &parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("provider: google completion: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return nil, fmt.Errorf("provider: google returned no candidates")
	}
	cand := parsed.Candidates[0]
	return &Response{
		Message:      fromGoogleContent(cand.Content),
		FinishReason: strings.ToLower(cand.FinishReason),
		Usage: Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (a *GoogleAdapter) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	body := a.buildRequest(req)
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", a.base, req.Model, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(buf)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider: google stream: %w", err)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("provider: google stream: %w", &statusError{Code: resp.StatusCode, Body: string(data)})
	}

	out := make(chan StreamChunk, 16)
	go a.relaySSE(ctx, resp.Body, out)
	return out, nil
}

func (a *GoogleAdapter) relaySSE(ctx context.Context, body io.ReadCloser, out chan<- StreamChunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk googleResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		cand := chunk.Candidates[0]
		for _, p := range cand.Content.Parts {
			switch {
			case p.Thought:
				emit(ctx, out, StreamChunk{Kind: ChunkReasoningDelta, ReasoningDelta: ReasoningDetail{Text: p.Text, Signature: p.ThoughtSignature}})
			case p.FunctionCall != nil:
				args, _ := json.Marshal(p.FunctionCall.Args)
				emit(ctx, out, StreamChunk{Kind: ChunkToolCallDelta, ToolCallName: p.FunctionCall.Name, ArgumentDelta: string(args)})
			default:
				emit(ctx, out, StreamChunk{Kind: ChunkMessageDelta, ContentDelta: p.Text})
			}
		}
		if cand.FinishReason != "" {
			emit(ctx, out, StreamChunk{Kind: ChunkDone, FinishReason: strings.ToLower(cand.FinishReason)})
			return
		}
	}
	if err := scanner.Err(); err != nil {
		emit(ctx, out, StreamChunk{Kind: ChunkDone, Err: fmt.Errorf("provider: google stream read: %w", err)})
		return
	}
	emit(ctx, out, StreamChunk{Kind: ChunkDone, FinishReason: "stop"})
}

func (a *GoogleAdapter) postJSON(ctx context.Context, method, model string, body googleRequest, out *googleResponse) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := a.base + "/models/" + model + ":" + method + "?key=" + a.apiKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(buf)))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

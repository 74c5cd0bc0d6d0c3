package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpbridge/gateway/internal/adapter/outbound/provider"
	"github.com/mcpbridge/gateway/internal/domain/session"
	"github.com/mcpbridge/gateway/internal/domain/tool"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/telemetry"
)

var orchestratorTracer = telemetry.Tracer("mcp-gateway/orchestrator")

// Orchestrator is the Agentic Chat Orchestrator (C7): it drives one
// ChatSession's provider exchange loop, dispatching any tool_calls the
// provider returns through the Runner and feeding results back until the
// provider answers with plain content (spec.md §4.4 "Exchange loop").
type Orchestrator struct {
	adapters    map[provider.Kind]provider.Adapter
	supervisor  *Supervisor
	runner      *Runner
	toolTimeout time.Duration
	management  *ManagementDispatcher
}

// NewOrchestrator wires an Orchestrator against the provider adapters
// configured for this process, the Upstream Supervisor (to resolve a
// catalog entry's session), and the Runner (to execute the call).
func NewOrchestrator(adapters map[provider.Kind]provider.Adapter, sup *Supervisor, runner *Runner, toolTimeout time.Duration) *Orchestrator {
	return &Orchestrator{adapters: adapters, supervisor: sup, runner: runner, toolTimeout: toolTimeout}
}

// SetManagement attaches the in-process management-tool dispatcher. Left
// nil, executeToolCall never sees a managementUpstreamName entry because
// CatalogBuilder.Build was never given any to hand out.
func (o *Orchestrator) SetManagement(d *ManagementDispatcher) {
	o.management = d
}

// EventKind mirrors the SSE event names spec.md §4.4 lists; the HTTP layer
// renders these, one per emitted Event, as `event: <kind>\ndata: ...`.
type EventKind string

const (
	EventSessionUpdated  EventKind = "session.updated"
	EventStepStarted     EventKind = "step.started"
	EventMessageDelta    EventKind = "message.delta"
	EventReasoningDelta  EventKind = "reasoning.delta"
	EventToolCallStarted EventKind = "tool.call.started"
	EventToolCallDelta   EventKind = "tool.call.delta"
	EventToolCallResult  EventKind = "tool.call.result"
	EventStepCompleted   EventKind = "step.completed"
	EventMessageCompleted EventKind = "message.completed"
	EventError           EventKind = "error"
	EventDone            EventKind = "done"
)

// Event is one SSE frame the streaming exchange emits.
type Event struct {
	Kind       EventKind
	StepIndex  int
	Delta      string
	Reasoning  session.ReasoningDetail
	ToolCallID string
	ToolName   string
	Result     any
	Message    *session.Message
	Err        error
}

// ErrNoAdapter is returned when a session's model string doesn't resolve
// to any configured provider adapter.
type ErrNoAdapter struct{ Model string }

func (e *ErrNoAdapter) Error() string {
	return fmt.Sprintf("orchestrator: no provider adapter configured for model %q", e.Model)
}

// Run drives the non-streaming exchange loop to completion: append the
// user message, call the provider, execute every tool_calls entry through
// the Runner, and repeat until the provider answers with no tool calls
// (spec.md §4.4). The final assistant message is already appended to sess.
func (o *Orchestrator) Run(ctx context.Context, sess *session.ChatSession, userMessage string) error {
	sess.AppendMessage(session.Message{Role: session.RoleUser, Content: userMessage})
	return o.exchangeLoop(ctx, sess, nil)
}

// Stream drives the same exchange loop but relays every intermediate event
// on the returned channel, closing it once the loop finishes or ctx is
// cancelled (spec.md §4.4 "Streaming model"). A client disconnect is
// expected to cancel ctx; in-flight tool calls are bounded by the Runner's
// own per-call timeout regardless.
func (o *Orchestrator) Stream(ctx context.Context, sess *session.ChatSession, userMessage string) <-chan Event {
	out := make(chan Event, 32)
	sess.AppendMessage(session.Message{Role: session.RoleUser, Content: userMessage})
	go func() {
		defer close(out)
		emitEvent(ctx, out, Event{Kind: EventSessionUpdated})
		if err := o.exchangeLoop(ctx, sess, out); err != nil {
			emitEvent(ctx, out, Event{Kind: EventError, Err: err})
			return
		}
		emitEvent(ctx, out, Event{Kind: EventDone})
	}()
	return out
}

func emitEvent(ctx context.Context, out chan<- Event, e Event) {
	select {
	case out <- e:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) exchangeLoop(ctx context.Context, sess *session.ChatSession, events chan<- Event) error {
	kind, modelID := resolveProviderKind(sess.Model())
	adapter, ok := o.adapters[kind]
	if !ok {
		return &ErrNoAdapter{Model: sess.Model()}
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stepIndex := len(sess.Steps())
		if events != nil {
			emitEvent(ctx, events, Event{Kind: EventStepStarted, StepIndex: stepIndex})
		}

		req := o.buildRequest(sess, modelID)
		spanCtx, span := orchestratorTracer.Start(ctx, "orchestrator.provider_complete",
			trace.WithAttributes(
				attribute.String("provider", string(kind)),
				attribute.String("model", modelID),
			))
		resp, err := adapter.Complete(spanCtx, req)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return fmt.Errorf("orchestrator: provider call: %w", err)
		}
		span.End()

		msg := fromProviderMessage(resp.Message)
		sess.AppendMessage(msg)

		if events != nil {
			if msg.Content != "" {
				display, _ := session.ExtractThinking(msg.Content)
				emitEvent(ctx, events, Event{Kind: EventMessageDelta, Delta: display})
			}
			for _, rd := range msg.ReasoningDetails {
				emitEvent(ctx, events, Event{Kind: EventReasoningDelta, Reasoning: rd})
			}
		}

		if len(msg.ToolCalls) == 0 {
			if events != nil {
				copyMsg := msg
				emitEvent(ctx, events, Event{Kind: EventMessageCompleted, Message: &copyMsg})
			}
			return nil
		}

		for _, tc := range msg.ToolCalls {
			if events != nil {
				emitEvent(ctx, events, Event{Kind: EventToolCallStarted, ToolCallID: tc.ID, ToolName: tc.Name})
			}
			result, toolErr := o.executeToolCall(ctx, sess, stepIndex, tc)
			sess.AppendMessage(session.Message{
				Role:       session.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})
			if events != nil {
				var payload any = result
				if toolErr != nil {
					payload = toolErr.Error()
				}
				emitEvent(ctx, events, Event{Kind: EventToolCallResult, ToolCallID: tc.ID, ToolName: tc.Name, Result: payload})
			}
		}

		if events != nil {
			emitEvent(ctx, events, Event{Kind: EventStepCompleted, StepIndex: stepIndex})
		}
	}
}

// executeToolCall resolves a catalog entry for the provider-echoed tool
// name, dispatches it through the Runner, and records the step (spec.md
// §4.4, §3 Step). A tool that doesn't resolve in the session's catalog, or
// whose upstream is no longer mounted, fails the call rather than the
// whole exchange.
func (o *Orchestrator) executeToolCall(ctx context.Context, sess *session.ChatSession, stepIndex int, tc session.ToolCall) (string, error) {
	started := time.Now().UTC()
	step := session.Step{
		ToolCallID: tc.ID,
		Arguments:  tc.Arguments,
		StartedAt:  started,
	}

	catalog := sess.Catalog()
	entry, ok := catalog.Lookup(tc.Name)
	if !ok {
		step.Error = fmt.Sprintf("tool %q is not in this session's catalog", tc.Name)
		step.FinishedAt = time.Now().UTC()
		sess.AppendStep(step)
		return toolResultJSON(nil, step.Error), fmt.Errorf("%s", step.Error)
	}
	step.UpstreamID = entry.UpstreamName
	step.ToolName = entry.ToolName

	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		args = map[string]any{"raw": tc.Arguments}
	}

	if entry.UpstreamName == managementUpstreamName {
		result, err := o.dispatchManagement(ctx, entry.ToolName, args)
		step.FinishedAt = time.Now().UTC()
		if err != nil {
			step.Error = err.Error()
			sess.AppendStep(step)
			return toolResultJSON(nil, step.Error), err
		}
		raw, marshalErr := json.Marshal(result)
		if marshalErr == nil {
			step.Result = raw
		}
		sess.AppendStep(step)
		return toolResultJSON(result, ""), nil
	}

	upstreamSess, ok := o.supervisor.Session(entry.UpstreamName)
	if !ok {
		step.Error = fmt.Sprintf("upstream %q is not mounted", entry.UpstreamName)
		step.FinishedAt = time.Now().UTC()
		sess.AppendStep(step)
		return toolResultJSON(nil, step.Error), fmt.Errorf("%s", step.Error)
	}

	result, err := o.runner.Execute(ctx, upstreamSess, entry.ToolName, args, o.toolTimeout)
	step.FinishedAt = time.Now().UTC()
	if err != nil {
		step.Error = err.Error()
		sess.AppendStep(step)
		return toolResultJSON(nil, step.Error), err
	}

	raw, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		step.Result = raw
	}
	sess.AppendStep(step)
	return toolResultJSON(result, ""), nil
}

func (o *Orchestrator) dispatchManagement(ctx context.Context, toolName string, args map[string]any) (any, error) {
	if o.management == nil {
		return nil, fmt.Errorf("management tools are not wired")
	}
	return o.management.Dispatch(ctx, toolName, args)
}

func toolResultJSON(result any, errMsg string) string {
	if errMsg != "" {
		b, _ := json.Marshal(map[string]string{"error": errMsg})
		return string(b)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "null"
	}
	return string(b)
}

func (o *Orchestrator) buildRequest(sess *session.ChatSession, modelID string) provider.Request {
	msgs := sess.Messages()
	pmsgs := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		pmsgs = append(pmsgs, toProviderMessage(m))
	}

	var tools []provider.ToolDefinition
	if catalog := sess.Catalog(); catalog != nil {
		for _, d := range catalog.Definitions() {
			tools = append(tools, provider.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.InputSchema})
		}
	}

	return provider.Request{Model: modelID, Messages: pmsgs, Tools: tools}
}

func toProviderMessage(m session.Message) provider.Message {
	pm := provider.Message{
		Role:             provider.Role(m.Role),
		Content:          m.Content,
		ReasoningContent: m.ReasoningContent,
		ProviderState:    m.ProviderState,
		ToolCallID:       m.ToolCallID,
		ToolName:         m.ToolName,
	}
	for _, rd := range m.ReasoningDetails {
		pm.ReasoningDetails = append(pm.ReasoningDetails, provider.ReasoningDetail{
			ID: rd.ID, Index: rd.Index, Type: rd.Type, Text: rd.Text, Signature: rd.Signature,
		})
	}
	for _, tc := range m.ToolCalls {
		pm.ToolCalls = append(pm.ToolCalls, provider.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: normalizeToolArgs(string(tc.Arguments))})
	}
	return pm
}

func fromProviderMessage(pm provider.Message) session.Message {
	m := session.Message{
		Role:             session.Role(pm.Role),
		Content:          pm.Content,
		ReasoningContent: pm.ReasoningContent,
		ProviderState:    pm.ProviderState,
	}
	for _, rd := range pm.ReasoningDetails {
		m.ReasoningDetails = session.MergeReasoningDetails(m.ReasoningDetails, session.ReasoningDetail{
			ID: rd.ID, Index: rd.Index, Type: rd.Type, Text: rd.Text, Signature: rd.Signature,
		})
	}
	if _, thinking := session.ExtractThinking(pm.Content); thinking != "" {
		m.ReasoningDetails = session.MergeReasoningDetails(m.ReasoningDetails, session.ReasoningDetail{Type: "inline", Text: thinking})
	}
	for _, tc := range pm.ToolCalls {
		m.ToolCalls = append(m.ToolCalls, session.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: json.RawMessage(normalizeToolArgs(tc.Arguments))})
	}
	return m
}

// normalizeToolArgs guarantees a JSON-string value per spec.md §4.4:
// malformed values are wrapped as {"raw": "<original>"} rather than
// dropped.
func normalizeToolArgs(raw string) string {
	if raw == "" {
		return "{}"
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		wrapped, _ := json.Marshal(map[string]string{"raw": raw})
		return string(wrapped)
	}
	return raw
}

// resolveProviderKind maps a session's model string to a provider.Kind and
// the bare model id that provider expects, following the original
// implementation's prefix rules (spec.md §4.5): an explicit "<kind>/"
// prefix always wins; otherwise a handful of well-known model-name
// prefixes route natively; anything else falls back to OpenRouter, which
// accepts "vendor/model"-shaped ids directly.
func resolveProviderKind(model string) (provider.Kind, string) {
	switch {
	case strings.HasPrefix(model, "minimax/"):
		return provider.KindMiniMax, strings.TrimPrefix(model, "minimax/")
	case strings.HasPrefix(model, "google/"):
		return provider.KindGoogle, strings.TrimPrefix(model, "google/")
	case strings.HasPrefix(model, "anthropic/"):
		return provider.KindAnthropic, strings.TrimPrefix(model, "anthropic/")
	case strings.HasPrefix(model, "openai/"):
		return provider.KindOpenAI, strings.TrimPrefix(model, "openai/")
	case strings.HasPrefix(strings.ToLower(model), "gemini"):
		return provider.KindGoogle, model
	case strings.HasPrefix(strings.ToLower(model), "claude"):
		return provider.KindAnthropic, model
	case hasAnyPrefix(model, "gpt-", "o1", "o3", "o4", "chatgpt-"):
		return provider.KindOpenAI, model
	default:
		return provider.KindOpenRouter, model
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// CatalogBuilder assembles a ChatSession's tool catalog from whatever
// upstreams the Supervisor currently has mounted, applying the
// StateManager's enable/disable flags and an optional server allowlist
// before sanitizing and deduplicating names (spec.md §3 ToolCatalog, §4.4).
type CatalogBuilder struct {
	supervisor *Supervisor
	state      *StateManager
}

// NewCatalogBuilder wires a CatalogBuilder against the live Supervisor and
// StateManager, so a catalog always reflects the current mount/enable
// state at the moment a session is created or refreshed.
func NewCatalogBuilder(sup *Supervisor, state *StateManager) *CatalogBuilder {
	return &CatalogBuilder{supervisor: sup, state: state}
}

// Build constructs a catalog restricted to allowlist (nil means every
// connected, enabled upstream), then appends extra entries the caller
// supplies — e.g. the in-process management tools alongside whatever
// this session's upstreams offer.
func (b *CatalogBuilder) Build(allowlist []string, extra ...session.CatalogEntry) *session.ToolCatalog {
	allowed := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		allowed[name] = true
	}

	dedupe := tool.NewDeduper()
	var entries []session.CatalogEntry

	for _, sess := range b.supervisor.Sessions() {
		upstreamName := sess.Name()
		if len(allowlist) > 0 && !allowed[upstreamName] {
			continue
		}
		if b.state != nil && !b.state.IsServerEnabled(upstreamName) {
			continue
		}
		for _, t := range sess.Tools() {
			key := upstream.Key(upstreamName, t.Name)
			if b.state != nil && !b.state.IsToolEnabled(key) {
				continue
			}
			name := dedupe.Next(tool.CatalogName(upstreamName, t.Name))
			entries = append(entries, session.CatalogEntry{
				Name:         name,
				UpstreamName: upstreamName,
				ToolName:     t.Name,
				Description:  t.Description,
				InputSchema:  t.InputSchema,
			})
		}
	}

	for _, e := range extra {
		e.Name = dedupe.Next(e.Name)
		entries = append(entries, e)
	}

	return session.NewToolCatalog(entries)
}

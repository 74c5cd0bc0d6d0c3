package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpbridge/gateway/internal/adapter/outbound/provider"
	"github.com/mcpbridge/gateway/internal/domain/metrics"
	"github.com/mcpbridge/gateway/internal/domain/session"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/port/outbound"
)

// scriptedAdapter replays one Response per Complete call, in order.
type scriptedAdapter struct {
	kind      provider.Kind
	responses []*provider.Response
	calls     int
}

func (a *scriptedAdapter) Kind() provider.Kind { return a.kind }

func (a *scriptedAdapter) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	resp := a.responses[a.calls]
	a.calls++
	return resp, nil
}

func (a *scriptedAdapter) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	out := make(chan provider.StreamChunk)
	close(out)
	return out, nil
}

func newTestSupervisorWithWeather(t *testing.T) (*Supervisor, *fakeClient) {
	t.Helper()
	fc := &fakeClient{tools: []outbound.DiscoveredTool{
		{Name: "forecast", Description: "get weather", InputSchema: json.RawMessage(`{"type":"object"}`)},
	}}
	dial := func(ctx context.Context, cfg upstream.Config) (outbound.MCPClient, error) { return fc, nil }
	sup := NewSupervisor(dial, testLogger())
	require.NoError(t, sup.Reload(context.Background(), []upstream.Config{stdioConfig("weather")}))
	return sup, fc
}

func newTestOrchestrator(t *testing.T, adapter provider.Adapter) (*Orchestrator, *session.ChatSession) {
	t.Helper()
	sup, _ := newTestSupervisorWithWeather(t)
	runner := NewRunner(metrics.New())
	orch := NewOrchestrator(map[provider.Kind]provider.Adapter{provider.KindOpenRouter: adapter}, sup, runner, 5*time.Second)

	builder := NewCatalogBuilder(sup, nil)
	catalog := builder.Build(nil)
	sess := session.NewChatSession("sess-1", "some/model", "", catalog, nil)
	return orch, sess
}

func TestOrchestrator_Run_PlainAnswerNoToolCalls(t *testing.T) {
	adapter := &scriptedAdapter{kind: provider.KindOpenRouter, responses: []*provider.Response{
		{Message: provider.Message{Role: provider.RoleAssistant, Content: "hello"}, FinishReason: "stop"},
	}}
	orch, sess := newTestOrchestrator(t, adapter)

	err := orch.Run(context.Background(), sess, "hi")
	require.NoError(t, err)

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, session.RoleUser, msgs[0].Role)
	require.Equal(t, session.RoleAssistant, msgs[1].Role)
	require.Equal(t, "hello", msgs[1].Content)
}

func TestOrchestrator_Run_ExecutesToolCallThenAnswers(t *testing.T) {
	adapter := &scriptedAdapter{kind: provider.KindOpenRouter, responses: []*provider.Response{
		{
			Message: provider.Message{
				Role: provider.RoleAssistant,
				ToolCalls: []provider.ToolCall{
					{ID: "call_1", Name: "weather_forecast", Arguments: `{"city":"nyc"}`},
				},
			},
			FinishReason: "tool_calls",
		},
		{Message: provider.Message{Role: provider.RoleAssistant, Content: "it is sunny"}, FinishReason: "stop"},
	}}
	orch, sess := newTestOrchestrator(t, adapter)

	err := orch.Run(context.Background(), sess, "what's the weather")
	require.NoError(t, err)

	msgs := sess.Messages()
	require.Len(t, msgs, 4) // user, assistant(tool_calls), tool, assistant(final)
	require.Equal(t, session.RoleTool, msgs[2].Role)
	require.Equal(t, "call_1", msgs[2].ToolCallID)
	require.Equal(t, "it is sunny", msgs[3].Content)

	steps := sess.Steps()
	require.Len(t, steps, 1)
	require.Equal(t, "weather", steps[0].UpstreamID)
	require.Equal(t, "forecast", steps[0].ToolName)
	require.Empty(t, steps[0].Error)
}

func TestOrchestrator_Run_UnknownCatalogNameFailsStepButContinues(t *testing.T) {
	adapter := &scriptedAdapter{kind: provider.KindOpenRouter, responses: []*provider.Response{
		{
			Message: provider.Message{
				Role:      provider.RoleAssistant,
				ToolCalls: []provider.ToolCall{{ID: "call_1", Name: "nonexistent.tool", Arguments: `{}`}},
			},
			FinishReason: "tool_calls",
		},
		{Message: provider.Message{Role: provider.RoleAssistant, Content: "done"}, FinishReason: "stop"},
	}}
	orch, sess := newTestOrchestrator(t, adapter)

	err := orch.Run(context.Background(), sess, "hi")
	require.NoError(t, err)

	steps := sess.Steps()
	require.Len(t, steps, 1)
	require.NotEmpty(t, steps[0].Error)
}

func TestOrchestrator_Run_NoAdapterForModelReturnsError(t *testing.T) {
	sup, _ := newTestSupervisorWithWeather(t)
	runner := NewRunner(metrics.New())
	orch := NewOrchestrator(map[provider.Kind]provider.Adapter{}, sup, runner, 5*time.Second)
	builder := NewCatalogBuilder(sup, nil)
	sess := session.NewChatSession("sess-1", "some/model", "", builder.Build(nil), nil)

	err := orch.Run(context.Background(), sess, "hi")
	require.Error(t, err)
	var noAdapterErr *ErrNoAdapter
	require.ErrorAs(t, err, &noAdapterErr)
}

func TestResolveProviderKind_RoutesByPrefix(t *testing.T) {
	cases := []struct {
		model string
		kind  provider.Kind
		id    string
	}{
		{"minimax/abab6.5s-chat", provider.KindMiniMax, "abab6.5s-chat"},
		{"google/gemini-2.5-flash", provider.KindGoogle, "gemini-2.5-flash"},
		{"gemini-2.5-pro", provider.KindGoogle, "gemini-2.5-pro"},
		{"anthropic/claude-sonnet-4", provider.KindAnthropic, "claude-sonnet-4"},
		{"claude-sonnet-4-5", provider.KindAnthropic, "claude-sonnet-4-5"},
		{"openai/gpt-4o", provider.KindOpenAI, "gpt-4o"},
		{"gpt-4o-mini", provider.KindOpenAI, "gpt-4o-mini"},
		{"o3-mini", provider.KindOpenAI, "o3-mini"},
		{"meta-llama/llama-3.1", provider.KindOpenRouter, "meta-llama/llama-3.1"},
	}
	for _, c := range cases {
		kind, id := resolveProviderKind(c.model)
		require.Equal(t, c.kind, kind, c.model)
		require.Equal(t, c.id, id, c.model)
	}
}

func TestCatalogBuilder_Build_RespectsAllowlistAndAppendsExtras(t *testing.T) {
	sup, _ := newTestSupervisorWithWeather(t)
	builder := NewCatalogBuilder(sup, nil)

	catalog := builder.Build([]string{"weather"}, session.CatalogEntry{Name: "sessions_reset", Description: "reset this session"})
	require.Equal(t, 2, catalog.Len())

	entry, ok := catalog.Lookup("weather_forecast")
	require.True(t, ok)
	require.Equal(t, "weather", entry.UpstreamName)
	require.Equal(t, "forecast", entry.ToolName)

	_, ok = catalog.Lookup("sessions_reset")
	require.True(t, ok)
}

func TestCatalogBuilder_Build_ExcludesDisabledUpstream(t *testing.T) {
	sup, _ := newTestSupervisorWithWeather(t)

	state := NewStateManager(&memStore{})
	require.NoError(t, state.SetServerEnabled("weather", false))

	builder := NewCatalogBuilder(sup, state)
	catalog := builder.Build(nil)
	require.Equal(t, 0, catalog.Len())
}

func TestNormalizeToolArgs_WrapsMalformedJSON(t *testing.T) {
	require.Equal(t, "{}", normalizeToolArgs(""))
	require.Equal(t, `{"x":1}`, normalizeToolArgs(`{"x":1}`))

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal([]byte(normalizeToolArgs("not json")), &wrapped))
	require.Equal(t, "not json", wrapped["raw"])
}

package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpbridge/gateway/internal/config"
	"github.com/mcpbridge/gateway/internal/domain/metrics"
	domainstate "github.com/mcpbridge/gateway/internal/domain/state"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/port/outbound"
	"github.com/mcpbridge/gateway/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory domainstate.EnableState store, satisfying the
// unexported stateStore port structurally.
type memStore struct {
	saved *domainstate.EnableState
}

func (s *memStore) Load() *domainstate.EnableState {
	if s.saved == nil {
		return domainstate.New()
	}
	return s.saved.Clone()
}

func (s *memStore) Save(st *domainstate.EnableState) error {
	s.saved = st.Clone()
	return nil
}

// weatherClient is a scripted outbound.MCPClient double exposing a single
// "forecast" tool, with result/error hooks a test can set per case.
type weatherClient struct {
	outputSchema json.RawMessage
	result       any
	callErr      error
}

func (c *weatherClient) Initialize(ctx context.Context) error { return nil }

func (c *weatherClient) ListTools(ctx context.Context) ([]outbound.DiscoveredTool, error) {
	return []outbound.DiscoveredTool{{
		Name:         "forecast",
		InputSchema:  json.RawMessage(`{"type":"object"}`),
		OutputSchema: c.outputSchema,
	}}, nil
}

func (c *weatherClient) CallTool(ctx context.Context, name string, args map[string]any) (*outbound.ToolCallResult, error) {
	if c.callErr != nil {
		return nil, c.callErr
	}
	text, err := json.Marshal(c.result)
	if err != nil {
		return nil, err
	}
	return &outbound.ToolCallResult{Content: []outbound.ContentBlock{{Type: "text", Text: string(text)}}}, nil
}

func (c *weatherClient) Close() error { return nil }

// newTestServer wires a Server around a single mounted "weather" upstream
// backed by client, following the fake-dependency pattern established in
// internal/service's *_test.go files.
func newTestServer(t *testing.T, client *weatherClient, cfg config.ServerConfig) *Server {
	t.Helper()

	dial := func(ctx context.Context, uc upstream.Config) (outbound.MCPClient, error) { return client, nil }
	sup := service.NewSupervisor(dial, testLogger())
	t.Cleanup(func() { _ = sup.Close() })
	require.NoError(t, sup.Reload(context.Background(), []upstream.Config{
		{Name: "weather", Transport: upstream.TransportStdio, Command: "/bin/true"},
	}))

	state := service.NewStateManager(&memStore{})
	agg := metrics.New()
	runner := service.NewRunner(agg)

	gwCfg := &config.GatewayConfig{Server: cfg}

	return NewServer("", Deps{
		Supervisor:     sup,
		State:          state,
		Runner:         runner,
		Metrics:        agg,
		Config:         gwCfg,
		Logger:         testLogger(),
		TimeoutDefault: 5 * time.Second,
		TimeoutMax:     30 * time.Second,
	})
}

func invoke(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHandleSynthInvoke_UnknownUpstreamAnd404(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: "ok"}, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/ghost/forecast", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, false, env["ok"])
	require.Equal(t, "not_found", env["error"].(map[string]any)["code"])
}

func TestHandleSynthInvoke_DisabledToolReturns403Shape(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: "ok"}, config.ServerConfig{})
	require.NoError(t, s.deps.State.SetToolEnabled(upstream.Key("weather", "forecast"), false))

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, false, env["ok"])
	require.Equal(t, "disabled", env["error"].(map[string]any)["code"])
}

func TestHandleSynthInvoke_InvalidTimeout(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: "ok"}, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast?timeout=not-a-number", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, false, env["ok"])
	require.Equal(t, "invalid_timeout", env["error"].(map[string]any)["code"])
}

func TestHandleSynthInvoke_TimeoutOutOfRange(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: "ok"}, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast?timeout=9999", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, false, env["ok"])
	require.Equal(t, "invalid_timeout", env["error"].(map[string]any)["code"])
}

func TestHandleSynthInvoke_Success(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: map[string]any{"tempF": 70}}, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, true, env["ok"])
	require.Equal(t, float64(70), env["result"].(map[string]any)["tempF"])
}

// --- protocol-version enforcement (scenario 6: a missing header must be
// treated the same as a wrong one) ---

func TestHandleSynthInvoke_ProtocolVersionEnforce_MissingHeaderBlocks(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: "ok"}, config.ServerConfig{ProtocolVersionMode: "enforce"})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, false, env["ok"], "a missing protocol-version header must be blocked exactly like a wrong one")
	require.Equal(t, "protocol", env["error"].(map[string]any)["code"])
}

func TestHandleSynthInvoke_ProtocolVersionEnforce_WrongHeaderBlocks(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: "ok"}, config.ServerConfig{ProtocolVersionMode: "enforce"})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	req.Header.Set("MCP-Protocol-Version", "2024-01-01")
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, false, env["ok"])
	require.Equal(t, "protocol", env["error"].(map[string]any)["code"])
}

func TestHandleSynthInvoke_ProtocolVersionEnforce_CorrectHeaderPasses(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: "ok"}, config.ServerConfig{ProtocolVersionMode: "enforce"})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	req.Header.Set("MCP-Protocol-Version", protocolVersion)
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, true, env["ok"])
}

func TestHandleSynthInvoke_ProtocolVersionWarn_MissingHeaderStillSucceeds(t *testing.T) {
	s := newTestServer(t, &weatherClient{result: "ok"}, config.ServerConfig{ProtocolVersionMode: "warn"})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, true, env["ok"], "warn mode must log and proceed rather than block")
}

// --- output-schema validation ---

func TestHandleSynthInvoke_OutputValidationEnforce_BlocksInvalidResult(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"tempF":{"type":"number"}},"required":["tempF"]}`)
	client := &weatherClient{outputSchema: schema, result: map[string]any{"tempF": "not-a-number"}}
	s := newTestServer(t, client, config.ServerConfig{ValidateOutputMode: "enforce"})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, false, env["ok"])
	require.Equal(t, "output_validation", env["error"].(map[string]any)["code"])
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleSynthInvoke_OutputValidationWarn_AllowsInvalidResult(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"tempF":{"type":"number"}},"required":["tempF"]}`)
	client := &weatherClient{outputSchema: schema, result: map[string]any{"tempF": "not-a-number"}}
	s := newTestServer(t, client, config.ServerConfig{ValidateOutputMode: "warn"})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, true, env["ok"], "warn mode must log and return the result anyway")
}

func TestHandleSynthInvoke_OutputValidationEnforce_AllowsValidResult(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"tempF":{"type":"number"}},"required":["tempF"]}`)
	client := &weatherClient{outputSchema: schema, result: map[string]any{"tempF": 70}}
	s := newTestServer(t, client, config.ServerConfig{ValidateOutputMode: "enforce"})

	req := httptest.NewRequest(http.MethodPost, "/weather/forecast", strings.NewReader(`{}`))
	rec := invoke(s, req)

	env := decodeEnvelope(t, rec)
	require.Equal(t, true, env["ok"])
}

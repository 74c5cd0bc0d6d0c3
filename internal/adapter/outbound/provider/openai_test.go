package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIAdapter_Complete_PlainTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(KindOpenAI, "test-key", srv.URL, nil)
	resp, err := adapter.Complete(context.Background(), Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Message.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestOpenAIAdapter_Complete_ToolCallArgumentsNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-2",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": "not-json"}}]
			}, "finish_reason": "tool_calls"}]
		}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(KindOpenAI, "test-key", srv.URL, nil)
	resp, err := adapter.Complete(context.Background(), Request{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal([]byte(resp.Message.ToolCalls[0].Arguments), &wrapped))
	require.Equal(t, "not-json", wrapped["raw"])
}

func TestOpenAIAdapter_Complete_RetriesOn503ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}]}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(KindOpenAI, "test-key", srv.URL, nil)
	resp, err := adapter.Complete(context.Background(), Request{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Message.Content)
	require.Equal(t, 2, attempts)
}

func TestOpenAIAdapter_Complete_OpenRouterUsesOverriddenBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": [{"index": 0, "message": {"role": "assistant", "content": "via openrouter"}, "finish_reason": "stop"}]}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(KindOpenRouter, "test-key", srv.URL, nil)
	require.Equal(t, KindOpenRouter, adapter.Kind())
	resp, err := adapter.Complete(context.Background(), Request{Model: "openrouter/auto", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, "via openrouter", resp.Message.Content)
}

func TestUsesResponsesAPI(t *testing.T) {
	require.True(t, usesResponsesAPI("o3-mini"))
	require.True(t, usesResponsesAPI("gpt-5"))
	require.False(t, usesResponsesAPI("gpt-4o"))
}

func TestNormalizeArguments(t *testing.T) {
	require.Equal(t, "{}", normalizeArguments(""))
	require.Equal(t, `{"x":1}`, normalizeArguments(`{"x":1}`))

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal([]byte(normalizeArguments("garbage")), &wrapped))
	require.Equal(t, "garbage", wrapped["raw"])
}

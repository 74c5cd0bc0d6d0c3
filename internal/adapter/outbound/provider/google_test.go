package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoogleAdapter_Complete_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "hi"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 1, "totalTokenCount": 5}
		}`))
	}))
	defer srv.Close()

	adapter := NewGoogleAdapter("test-key", srv.URL, nil)
	resp, err := adapter.Complete(context.Background(), Request{Model: "gemini-2.5-flash", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Message.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestGoogleAdapter_Complete_ThoughtSignaturePreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [
				{"text": "thinking", "thought": true, "thoughtSignature": "sig-1"},
				{"text": "final answer"}
			]}, "finishReason": "STOP"}]
		}`))
	}))
	defer srv.Close()

	adapter := NewGoogleAdapter("test-key", srv.URL, nil)
	resp, err := adapter.Complete(context.Background(), Request{Model: "gemini-2.5-pro", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, "final answer", resp.Message.Content)
	require.Len(t, resp.Message.ReasoningDetails, 1)
	require.Equal(t, "sig-1", resp.Message.ReasoningDetails[0].Signature)
}

func TestResolveThinkingBudget_FlashAllowsZeroAndClampsRange(t *testing.T) {
	require.Equal(t, 0, resolveThinkingBudget("gemini-2.5-flash", 0))
	require.Equal(t, -1, resolveThinkingBudget("gemini-2.5-flash", -5))
	require.Equal(t, 24576, resolveThinkingBudget("gemini-2.5-flash", 100000))
	require.Equal(t, 512, resolveThinkingBudget("gemini-2.5-flash", 512))
}

func TestResolveThinkingBudget_ProNeverDisables(t *testing.T) {
	require.Equal(t, -1, resolveThinkingBudget("gemini-2.5-pro", 0))
	require.Equal(t, -1, resolveThinkingBudget("gemini-2.5-pro", -1))
	require.Equal(t, 2048, resolveThinkingBudget("gemini-2.5-pro", 2048))
}

func TestGoogleAdapter_CachedContentName_OnlyAboveThresholdAndWithHandle(t *testing.T) {
	adapter := NewGoogleAdapter("test-key", "http://example.invalid", nil)
	longPrompt := make([]byte, googleCachedContentThreshold+1)
	for i := range longPrompt {
		longPrompt[i] = 'a'
	}

	require.Equal(t, "", adapter.cachedContentName(string(longPrompt), ""))
	require.Equal(t, "", adapter.cachedContentName("short", "cachedContents/abc"))
	require.Equal(t, "cachedContents/abc", adapter.cachedContentName(string(longPrompt), "cachedContents/abc"))
}

func TestGoogleAdapter_BuildRequest_UsesCachedContentInsteadOfInlineSystem(t *testing.T) {
	adapter := NewGoogleAdapter("test-key", "http://example.invalid", nil)
	longPrompt := make([]byte, googleCachedContentThreshold+1)
	for i := range longPrompt {
		longPrompt[i] = 'a'
	}

	req := adapter.buildRequest(Request{
		Model: "gemini-2.5-flash",
		Messages: []Message{
			{Role: RoleSystem, Content: string(longPrompt)},
			{Role: RoleUser, Content: "hi"},
		},
		CachedContentHandle: "cachedContents/abc",
	})
	require.Nil(t, req.SystemInstruction)
	require.Equal(t, "cachedContents/abc", req.CachedContent)
}

func TestGoogleAdapter_ToolResultBecomesFunctionResponse(t *testing.T) {
	adapter := NewGoogleAdapter("test-key", "http://example.invalid", nil)
	content := adapter.toGoogleContent(Message{Role: RoleTool, ToolName: "weather_forecast", Content: `{"temp":72}`})
	require.Equal(t, "user", content.Role)
	require.Len(t, content.Parts, 1)
	require.NotNil(t, content.Parts[0].FunctionResponse)
	require.Equal(t, "weather_forecast", content.Parts[0].FunctionResponse.Name)
}

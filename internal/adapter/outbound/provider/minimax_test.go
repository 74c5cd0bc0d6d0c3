package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMiniMaxAdapter_DisablesPromptCaching(t *testing.T) {
	adapter := NewMiniMaxAdapter("test-key", "http://example.invalid", nil)
	require.Equal(t, KindMiniMax, adapter.Kind())

	req := adapter.buildRequest(Request{Model: "abab6.5s-chat", Messages: []Message{{Role: RoleUser, Content: "hi"}}}, false)
	require.Nil(t, req.Messages[0].Content[0].CacheControl)
}

func TestNewMiniMaxAdapter_CompletesAgainstAnthropicCompatibleEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}], "stop_reason": "end_turn"}`))
	}))
	defer srv.Close()

	adapter := NewMiniMaxAdapter("test-key", srv.URL, nil)
	resp, err := adapter.Complete(context.Background(), Request{Model: "abab6.5s-chat", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Message.Content)
}

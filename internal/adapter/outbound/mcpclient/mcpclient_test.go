package mcpclient

import (
	"context"
	"testing"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

func TestMergeProtocolHeader_InjectsVersion(t *testing.T) {
	t.Parallel()

	got := mergeProtocolHeader(map[string]string{"Authorization": "Bearer xyz"})
	if got["MCP-Protocol-Version"] != protocolVersionHeader {
		t.Errorf("MCP-Protocol-Version = %q, want %q", got["MCP-Protocol-Version"], protocolVersionHeader)
	}
	if got["Authorization"] != "Bearer xyz" {
		t.Errorf("Authorization header dropped: %+v", got)
	}
}

func TestMergeProtocolHeader_NilInput(t *testing.T) {
	t.Parallel()

	got := mergeProtocolHeader(nil)
	if got["MCP-Protocol-Version"] != protocolVersionHeader {
		t.Errorf("MCP-Protocol-Version = %q, want %q", got["MCP-Protocol-Version"], protocolVersionHeader)
	}
	if len(got) != 1 {
		t.Errorf("expected only the injected header, got %+v", got)
	}
}

func TestNewStdio_InvalidCommand(t *testing.T) {
	t.Parallel()

	cfg := upstream.Config{
		Name:      "broken",
		Transport: upstream.TransportStdio,
		Command:   "/definitely/does/not/exist-mcp-server-binary",
	}

	_, err := NewStdio(cfg)
	if err == nil {
		t.Error("NewStdio() expected error for nonexistent command, got nil")
	}
}

func TestNewSSE_InvalidURL(t *testing.T) {
	t.Parallel()

	cfg := upstream.Config{
		Name:      "broken",
		Transport: upstream.TransportSSE,
		URL:       "://not-a-valid-url",
	}

	_, err := NewSSE(context.Background(), cfg)
	if err == nil {
		t.Error("NewSSE() expected error for malformed URL, got nil")
	}
}

func TestNewStreamableHTTP_InvalidURL(t *testing.T) {
	t.Parallel()

	cfg := upstream.Config{
		Name:      "broken",
		Transport: upstream.TransportStreamableHTTP,
		URL:       "://not-a-valid-url",
	}

	_, err := NewStreamableHTTP(context.Background(), cfg)
	if err == nil {
		t.Error("NewStreamableHTTP() expected error for malformed URL, got nil")
	}
}

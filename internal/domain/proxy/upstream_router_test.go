package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpbridge/gateway/pkg/mcp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConnectionProvider struct {
	connected bool
	writer    io.WriteCloser
	reader    io.ReadCloser
	getErr    error
}

func (f *fakeConnectionProvider) GetConnection(upstreamID string) (io.WriteCloser, io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	return f.writer, f.reader, nil
}

func (f *fakeConnectionProvider) AllConnected() bool { return f.connected }

func newUpstreamPipe(response []byte) (io.WriteCloser, io.ReadCloser) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	go func() {
		buf := make([]byte, 4096)
		_, _ = inR.Read(buf)
		_, _ = outW.Write(append(response, '\n'))
	}()
	return inW, outR
}

func TestUpstreamRouter_Intercept_NoUpstreamsReturnsError(t *testing.T) {
	cache := NewToolCacheAdapter(newTestCache(t))
	provider := &fakeConnectionProvider{connected: false}
	router := NewUpstreamRouter(cache, provider, discardLogger())

	msg, err := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`), mcp.ClientToServer)
	require.NoError(t, err)

	resp, err := router.Intercept(context.Background(), msg)
	require.NoError(t, err)

	var envelope struct {
		Error struct{ Code int64 } `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Raw, &envelope))
	require.Equal(t, ErrCodeNoUpstreams, envelope.Error.Code)
}

func TestUpstreamRouter_Intercept_ToolsListAggregatesAndSorts(t *testing.T) {
	cache := NewToolCacheAdapter(newTestCache(t))
	provider := &fakeConnectionProvider{connected: true}
	router := NewUpstreamRouter(cache, provider, discardLogger())

	msg, err := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`), mcp.ClientToServer)
	require.NoError(t, err)

	resp, err := router.Intercept(context.Background(), msg)
	require.NoError(t, err)

	var envelope struct {
		Result struct {
			Tools []struct{ Name string } `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp.Raw, &envelope))
	require.Len(t, envelope.Result.Tools, 2)
	require.Equal(t, "forecast", envelope.Result.Tools[0].Name)
	require.Equal(t, "read", envelope.Result.Tools[1].Name)
}

func TestUpstreamRouter_Intercept_ToolsCallUnknownToolReturnsError(t *testing.T) {
	cache := NewToolCacheAdapter(newTestCache(t))
	provider := &fakeConnectionProvider{connected: true}
	router := NewUpstreamRouter(cache, provider, discardLogger())

	msg, err := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nonexistent"}}`), mcp.ClientToServer)
	require.NoError(t, err)

	resp, err := router.Intercept(context.Background(), msg)
	require.NoError(t, err)

	var envelope struct {
		Error struct{ Code int64 } `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Raw, &envelope))
	require.Equal(t, ErrCodeMethodNotFound, envelope.Error.Code)
}

func TestUpstreamRouter_Intercept_ToolsCallRoutesToOwningUpstream(t *testing.T) {
	cache := NewToolCacheAdapter(newTestCache(t))
	w, r := newUpstreamPipe([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"72F"}]}}`))
	provider := &fakeConnectionProvider{connected: true, writer: w, reader: r}
	router := NewUpstreamRouter(cache, provider, discardLogger())

	msg, err := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"forecast"}}`), mcp.ClientToServer)
	require.NoError(t, err)

	resp, err := router.Intercept(context.Background(), msg)
	require.NoError(t, err)
	require.Contains(t, string(resp.Raw), "72F")
}

func TestUpstreamRouter_Intercept_ServerToClientPassesThrough(t *testing.T) {
	cache := NewToolCacheAdapter(newTestCache(t))
	provider := &fakeConnectionProvider{connected: true}
	router := NewUpstreamRouter(cache, provider, discardLogger())

	msg, err := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`), mcp.ServerToClient)
	require.NoError(t, err)

	resp, err := router.Intercept(context.Background(), msg)
	require.NoError(t, err)
	require.Same(t, msg, resp)
}

func TestUpstreamRouter_Intercept_InitializeRespondsLocally(t *testing.T) {
	cache := NewToolCacheAdapter(newTestCache(t))
	provider := &fakeConnectionProvider{connected: true}
	router := NewUpstreamRouter(cache, provider, discardLogger())

	msg, err := mcp.WrapMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`), mcp.ClientToServer)
	require.NoError(t, err)

	resp, err := router.Intercept(context.Background(), msg)
	require.NoError(t, err)
	require.Contains(t, string(resp.Raw), "protocolVersion")
}

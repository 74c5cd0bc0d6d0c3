// Package http implements the gateway's raw MCP proxy port: one aggregate
// mount plus one mount per upstream, each wrapping a chain of
// proxy.MessageInterceptor (spec.md §4.6, §6 "Raw MCP port"). Unlike the
// main HTTP port, this surface forwards JSON-RPC bytes to the upstream
// largely verbatim — it only routes, filters disabled tools, and answers
// initialize locally.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcpbridge/gateway/internal/domain/proxy"
	"github.com/mcpbridge/gateway/pkg/mcp"
)

const maxMessageBytes = 1 << 20 // 1MB, mirrors the MCP spec's practical message size ceiling.

// mcpHandler builds the http.Handler for one raw MCP mount backed by chain.
// Every POST body is one JSON-RPC request (or batch); the response is the
// chain's answer, written back verbatim as the content type it already
// carries (application/json).
func mcpHandler(chain proxy.MessageInterceptor, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handlePost(w, r, chain, logger)
		case http.MethodOptions:
			handleOptions(w)
		default:
			w.Header().Set("Allow", "POST, OPTIONS")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func handlePost(w http.ResponseWriter, r *http.Request, chain proxy.MessageInterceptor, logger *slog.Logger) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes+1))
	if err != nil {
		writeJSONRPCError(w, nil, -32700, "failed to read request body")
		return
	}
	if len(body) > maxMessageBytes {
		writeJSONRPCError(w, nil, -32700, "request body too large")
		return
	}

	msg, err := mcp.WrapMessage(body, mcp.ClientToServer)
	if err != nil {
		writeJSONRPCError(w, nil, -32700, "parse error: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	resp, err := chain.Intercept(ctx, msg)
	if err != nil {
		logger.Error("raw mcp proxy: intercept failed", "error", err)
		writeJSONRPCError(w, msg.RawID(), -32603, "internal error")
		return
	}
	if resp == nil {
		// A notification (no reply expected): acknowledge with 202 and no
		// body, per the Streamable HTTP transport's convention.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if sid := r.Header.Get("Mcp-Session-Id"); sid != "" {
		w.Header().Set("Mcp-Session-Id", sid)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp.Raw)
}

func handleOptions(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Mcp-Session-Id, MCP-Protocol-Version, Authorization")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSONRPCError(w http.ResponseWriter, id json.RawMessage, code int64, message string) {
	resp := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id,omitempty"`
		Error   mcp.RPCError    `json:"error"`
	}{
		JSONRPC: "2.0",
		ID:      id,
		Error:   mcp.RPCError{Code: code, Message: message},
	}
	w.Header().Set("Content-Type", "application/json")
	if code == -32700 {
		w.WriteHeader(http.StatusBadRequest)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// ErrNoMount is returned by a mount builder when no upstream is configured
// for it, rather than serving a permanently-broken handler.
var ErrNoMount = errors.New("no upstream configured for this mount")

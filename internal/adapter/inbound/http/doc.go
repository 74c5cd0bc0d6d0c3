// Package http implements the gateway's raw MCP proxy port.
//
// This package serves one HTTP listener multiplexing a Mount per
// aggregate/per-upstream route. Each Mount forwards JSON-RPC requests
// through a proxy.MessageInterceptor chain and writes the chain's
// response back as a single JSON document — no SSE streaming, no
// server-initiated push. The main HTTP port (tool invocation, chat
// sessions, admin routes) lives in internal/adapter/inbound/api and is
// a separate listener.
//
// # Usage
//
// Create and start a Transport over a set of mounts:
//
//	transport := http.NewTransport(mounts,
//	    http.WithAddr(":8081"),
//	    http.WithTLS("cert.pem", "key.pem"),
//	    http.WithAllowedOrigins([]string{"https://example.com"}),
//	    http.WithLogger(logger),
//	)
//	err := transport.Start(ctx)
//
// # Endpoints
//
// Every Mount exposes the same shape at its own path:
//
//	POST <mount>    - Send a JSON-RPC request (or batch), receive the JSON-RPC response
//	OPTIONS <mount> - CORS preflight handling
//
// Plus two fixed routes shared by all mounts: GET /health and GET /metrics.
//
// # Request / response headers
//
//	Mcp-Session-Id: <session-id>     - echoed back unchanged if sent
//	Content-Type: application/json   - required for POST requests
//
// # Security
//
//   - TLS 1.2 minimum when HTTPS is enabled via WithTLS
//   - DNS rebinding protection: Origin header validation via WithAllowedOrigins
//   - Real IP extraction from X-Forwarded-For/X-Real-IP for logging and metrics
//
// # Middleware chain
//
// Requests pass through, in order: MetricsMiddleware,
// DNSRebindingProtection, RealIPMiddleware, RequestIDMiddleware, then the
// mount's handler, which hands the parsed message to its
// proxy.MessageInterceptor chain.
package http

// Package api implements the gateway's main HTTP port: the Endpoint
// Synthesizer's per-tool invocation routes, the /_meta/* admin surface,
// and the /sessions/* chat surface (spec.md §4.2, §6). It is a separate
// listener from the raw MCP proxy port in internal/adapter/inbound/http.
//
// # Routing
//
// Tool invocation does not pre-register one chi route per discovered
// tool. A single wildcard route matches POST /{upstream}/{tool} (and
// POST /{upstream}/ for parameterless tools) and resolves the upstream
// and tool against the live Supervisor at request time. This keeps
// spec.md §8's route-existence invariant ("route POST /{u}/* exists iff
// u is in the current config, even disconnected") true across a
// hot-reload without resyncing chi's route table on every Reload.
//
// # Enforcement pipeline
//
// Every synthesized call runs, in order: call-counter increment, the
// enable check (server/tool disabled), the protocol-version check,
// timeout resolution, an optional per-tool CEL allow_if predicate, then
// dispatch through the Runner. Every outcome — success or failure — is
// rendered through the uniform envelope.Envelope shape (spec.md §7).
package api

// Package mcp provides MCP message types and a JSON-RPC codec for the
// gateway's raw proxy port. It deliberately avoids any MCP SDK: the proxy
// never needs a typed request/response model, only enough of the envelope
// to route by method name, extract a tool name, and filter a tools/list
// result — everything else is forwarded as opaque bytes.
package mcp

import (
	"encoding/json"
	"time"
)

// Direction indicates the flow direction of a message through the proxy.
type Direction int

const (
	// ClientToServer indicates a message flowing from client to MCP server.
	ClientToServer Direction = iota
	// ServerToClient indicates a message flowing from MCP server to client.
	ServerToClient
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client->server"
	case ServerToClient:
		return "server->client"
	default:
		return "unknown"
	}
}

// envelope is one JSON-RPC 2.0 object, request or response. A wire message
// is either a single envelope or a batch (top-level JSON array of them).
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e envelope) isRequest() bool  { return e.Method != "" }
func (e envelope) isResponse() bool { return e.Method == "" && (e.Result != nil || e.Error != nil) }

// Message wraps one or more decoded JSON-RPC envelopes with proxy metadata.
// It stores both the raw bytes (for efficient passthrough) and the decoded
// envelopes (for routing and filtering).
type Message struct {
	// Raw contains the original bytes of the message. Used for passthrough
	// when no modification is needed, and re-derived by reencode after a
	// filtering pass changes Decoded.
	Raw []byte

	// Direction indicates whether this message is flowing from client to
	// server or server to client.
	Direction Direction

	// Decoded holds one envelope normally, or more than one for a JSON-RPC
	// batch (a top-level array). Nil if parsing failed but passthrough is
	// still desired.
	Decoded []envelope

	// Timestamp records when the message was received by the proxy.
	Timestamp time.Time

	// ParsedParams caches the parsed params of a single-envelope request.
	// Set by ParseParams() for reuse across interceptors.
	ParsedParams map[string]interface{}
}

// IsBatch reports whether the message carries more than one envelope.
func (m *Message) IsBatch() bool {
	return len(m.Decoded) > 1
}

// IsRequest returns true if the (sole) decoded envelope is a request.
func (m *Message) IsRequest() bool {
	if len(m.Decoded) != 1 {
		return false
	}
	return m.Decoded[0].isRequest()
}

// IsResponse returns true if the (sole) decoded envelope is a response.
func (m *Message) IsResponse() bool {
	if len(m.Decoded) != 1 {
		return false
	}
	return m.Decoded[0].isResponse()
}

// Method returns the method name of the sole request envelope, or the
// empty string if this isn't a single request (including batches, which
// the router treats as pass-through).
func (m *Message) Method() string {
	if len(m.Decoded) != 1 {
		return ""
	}
	return m.Decoded[0].Method
}

// IsToolCall returns true if this is a tools/call request.
func (m *Message) IsToolCall() bool {
	return m.Method() == "tools/call"
}

// ParseParams parses the request params and caches the result in
// ParsedParams. Safe to call multiple times.
func (m *Message) ParseParams() map[string]interface{} {
	if m.ParsedParams != nil {
		return m.ParsedParams
	}
	if len(m.Decoded) != 1 || m.Decoded[0].Params == nil {
		return nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal(m.Decoded[0].Params, &params); err != nil {
		return nil
	}
	m.ParsedParams = params
	return params
}

// ToolCallName returns the tool name of a tools/call request's params, or
// the empty string if this isn't a tools/call.
func (m *Message) ToolCallName() string {
	if !m.IsToolCall() {
		return ""
	}
	params := m.ParseParams()
	if params == nil {
		return ""
	}
	name, _ := params["name"].(string)
	return name
}

// RawID extracts the request ID from the raw message bytes as
// json.RawMessage, preserving the original representation (number, string,
// or null). Returns nil for batches or if no ID is present.
func (m *Message) RawID() json.RawMessage {
	if len(m.Decoded) != 1 {
		return nil
	}
	return m.Decoded[0].ID
}

// resultTool mirrors one element of a tools/list result's "tools" array —
// only the fields the filter needs to read or re-derive an upstream hint
// from, plus Extra to carry every other field through unmodified.
type resultTool struct {
	Name        string          `json:"name"`
	Annotations *toolAnnotation `json:"annotations,omitempty"`
	Extra       map[string]json.RawMessage
}

type toolAnnotation struct {
	Server string `json:"server,omitempty"`
}

// MarshalJSON re-emits Extra merged with the named fields, so round-tripping
// an unfiltered tool preserves every field the upstream sent.
func (t resultTool) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(t.Extra)+2)
	for k, v := range t.Extra {
		out[k] = v
	}
	nameJSON, err := json.Marshal(t.Name)
	if err != nil {
		return nil, err
	}
	out["name"] = nameJSON
	if t.Annotations != nil {
		annJSON, err := json.Marshal(t.Annotations)
		if err != nil {
			return nil, err
		}
		out["annotations"] = annJSON
	}
	return json.Marshal(out)
}

func (t *resultTool) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if nameRaw, ok := raw["name"]; ok {
		if err := json.Unmarshal(nameRaw, &t.Name); err != nil {
			return err
		}
	}
	if annRaw, ok := raw["annotations"]; ok {
		var ann toolAnnotation
		if err := json.Unmarshal(annRaw, &ann); err == nil {
			t.Annotations = &ann
		}
	}
	t.Extra = raw
	return nil
}

// FilterTools drops disabled entries from this message's tools/list result,
// in place, and re-derives Raw to match. isDisabled receives the upstream
// hint (from a "server__tool" prefix, annotations.server, or "" if neither
// is available) and the tool's own name; it decides disabled state by
// consulting the state manager. FilterTools is a no-op (returns false) for
// anything that isn't a single-envelope, successful tools/list response.
func (m *Message) FilterTools(isDisabled func(upstreamHint, toolName string) bool) (bool, error) {
	if len(m.Decoded) != 1 || m.Decoded[0].Result == nil {
		return false, nil
	}

	var result struct {
		Tools []resultTool `json:"tools"`
		Rest  map[string]json.RawMessage
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(m.Decoded[0].Result, &raw); err != nil {
		return false, err
	}
	toolsRaw, ok := raw["tools"]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(toolsRaw, &result.Tools); err != nil {
		return false, err
	}

	kept := make([]resultTool, 0, len(result.Tools))
	for _, t := range result.Tools {
		hint := upstreamHintFromName(t.Name)
		toolName := t.Name
		if hint != "" {
			toolName = t.Name[len(hint)+2:]
		} else if t.Annotations != nil {
			hint = t.Annotations.Server
		}
		if isDisabled(hint, toolName) {
			continue
		}
		kept = append(kept, t)
	}

	keptJSON, err := json.Marshal(kept)
	if err != nil {
		return false, err
	}
	raw["tools"] = keptJSON
	resultJSON, err := json.Marshal(raw)
	if err != nil {
		return false, err
	}
	m.Decoded[0].Result = resultJSON
	return true, m.reencode()
}

// upstreamHintFromName splits a "server__tool" aggregate name into its
// server half. Returns "" if name carries no such prefix.
func upstreamHintFromName(name string) string {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == '_' && name[i+1] == '_' {
			return name[:i]
		}
	}
	return ""
}

// reencode regenerates Raw from Decoded after an in-place edit.
func (m *Message) reencode() error {
	raw, err := EncodeMessage(m.Decoded)
	if err != nil {
		return err
	}
	m.Raw = raw
	return nil
}

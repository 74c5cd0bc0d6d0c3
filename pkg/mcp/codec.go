package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// jsonRPCVersion is the only JSON-RPC version this codec accepts.
const jsonRPCVersion = "2.0"

// DecodeMessage deserializes JSON-RPC wire format data into one or more
// envelopes. A top-level JSON array decodes as a batch; a top-level object
// decodes as a single envelope. Every envelope must carry
// `"jsonrpc":"2.0"` — anything else is rejected so a malformed or
// non-JSON-RPC body is never silently routed.
func DecodeMessage(data []byte) ([]envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("mcp: empty message")
	}

	var envs []envelope
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &envs); err != nil {
			return nil, fmt.Errorf("mcp: decode batch: %w", err)
		}
		if len(envs) == 0 {
			return nil, fmt.Errorf("mcp: empty batch")
		}
	} else {
		var e envelope
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return nil, fmt.Errorf("mcp: decode message: %w", err)
		}
		envs = []envelope{e}
	}

	for i, e := range envs {
		if e.JSONRPC != jsonRPCVersion {
			return nil, fmt.Errorf("mcp: envelope %d: unsupported jsonrpc version %q", i, e.JSONRPC)
		}
	}
	return envs, nil
}

// EncodeMessage serializes one or more envelopes to wire format: a bare
// object for a single envelope, a JSON array for a batch.
func EncodeMessage(envs []envelope) ([]byte, error) {
	if len(envs) == 0 {
		return nil, fmt.Errorf("mcp: no envelopes to encode")
	}
	if len(envs) == 1 {
		return json.Marshal(envs[0])
	}
	return json.Marshal(envs)
}

// WrapMessage decodes raw JSON-RPC bytes and wraps them in a Message with
// the given direction and current timestamp.
func WrapMessage(raw []byte, dir Direction) (*Message, error) {
	decoded, err := DecodeMessage(raw)
	if err != nil {
		return nil, err
	}
	return &Message{
		Raw:       raw,
		Direction: dir,
		Decoded:   decoded,
		Timestamp: time.Now(),
	}, nil
}

// Package tool implements the Schema Translator: compiling an arbitrary
// upstream JSON Schema into a typed request validator plus a response
// fragment, and the tool-name sanitization shared by the HTTP path router
// and the chat tool catalog.
package tool

import "encoding/json"

// RawSchema is the JSON Schema document as received from an upstream's
// tools/list response (inputSchema or outputSchema).
type RawSchema = json.RawMessage

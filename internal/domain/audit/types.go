// Package audit contains domain types for the gateway's tool-call audit
// trail: one record per synthesized-route invocation, covering both the
// enable/policy decision and the outcome.
package audit

import (
	"strings"
	"time"
)

// Decision constants for audit records.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// AuditRecord represents one auditable event from a synthesized tool
// invocation (spec.md §4.2's dispatch pipeline).
type AuditRecord struct {
	// Timestamp is when the request was received.
	Timestamp time.Time
	// SessionID correlates the call to a chat session, empty for direct
	// tool-endpoint calls.
	SessionID string
	// UpstreamName and ToolName identify the routed tool (upstream.Key).
	UpstreamName string
	ToolName     string
	// ToolArguments are the call arguments, redacted via RedactSensitiveArgs
	// before being persisted.
	ToolArguments map[string]interface{}
	// Decision is DecisionAllow or DecisionDeny.
	Decision string
	// Reason explains a deny decision, or carries an error summary for a
	// failed allow.
	Reason string
	// RuleID is the access-predicate expression that produced the decision,
	// empty when no predicate is configured for the tool.
	RuleID string
	// RequestID correlates this record across logs.
	RequestID string
	// LatencyMicros is wall-clock time from dispatch to response.
	LatencyMicros int64
}

// sensitiveKeywords lists substrings that indicate a sensitive argument key.
// Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private_key", "privatekey",
}

// RedactSensitiveArgs returns a copy of args with sensitive values masked.
// A key is considered sensitive if it contains any of the sensitiveKeywords
// (case-insensitive). Values are replaced with "***REDACTED***".
func RedactSensitiveArgs(args map[string]interface{}) map[string]interface{} {
	if len(args) == 0 {
		return args
	}
	redacted := make(map[string]interface{}, len(args))
	for k, v := range args {
		if isSensitiveKey(k) {
			redacted[k] = "***REDACTED***"
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

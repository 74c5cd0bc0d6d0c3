// Package policy defines the evaluation context CEL access predicates run
// against. It is deliberately small: only the fields the gateway's
// per-tool allow_if predicate (SPEC_FULL.md's supplemented access-control
// feature) ever populates are set by callers; the rest keep their zero
// value and simply never match an expression that doesn't reference them.
package policy

import "time"

// EvaluationContext is the input to a compiled CEL allow_if expression.
// Field names mirror the CEL variable names the Endpoint Synthesizer's
// predicates reference (tool_name, tool_args, session_id, ...).
type EvaluationContext struct {
	ToolName      string
	ToolArguments map[string]any
	UserRoles     []string
	SessionID     string
	IdentityID    string
	IdentityName  string
	RequestTime   time.Time

	ActionType string
	ActionName string
	Protocol   string
	Framework  string
	Gateway    string

	DestURL     string
	DestDomain  string
	DestIP      string
	DestPort    int
	DestScheme  string
	DestPath    string
	DestCommand string
}

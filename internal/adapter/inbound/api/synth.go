package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mcpbridge/gateway/internal/domain/audit"
	"github.com/mcpbridge/gateway/internal/domain/envelope"
	"github.com/mcpbridge/gateway/internal/domain/metrics"
	"github.com/mcpbridge/gateway/internal/domain/policy"
	"github.com/mcpbridge/gateway/internal/domain/tool"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// protocolVersion is the MCP protocol version the gateway supports,
// matching the value mcpclient/sse.go injects when dialing an upstream.
const protocolVersion = "2025-06-18"

const maxSynthBodyBytes = 1 << 20 // 1MiB

// mountSynthesizer registers the Endpoint Synthesizer's dynamic tool
// invocation route. Rather than registering one literal chi route per
// discovered tool (which would need tearing down and rebuilding on every
// hot-reload), a single wildcard resolves {upstream}/{tool} against the
// live Supervisor at request time — satisfying spec.md §8's "route
// POST /{u}/* exists iff u is in the current config" invariant without
// any route-table resync.
func (s *Server) mountSynthesizer(r chi.Router) {
	r.Post("/{upstream}/{tool}", s.handleSynthInvoke)
	r.Post("/{upstream}/", s.handleSynthInvoke)
}

func (s *Server) handleSynthInvoke(w http.ResponseWriter, r *http.Request) {
	upstreamName := chi.URLParam(r, "upstream")
	toolName := chi.URLParam(r, "tool")
	start := time.Now()
	requestID := uuid.New().String()

	// Step 1: call counter, always, before any other check can short-circuit.
	s.deps.Metrics.RecordCall()

	sess, ok := s.deps.Supervisor.Session(upstreamName)
	if !ok {
		writeFail(w, "unknown upstream \""+upstreamName+"\"", envelope.CodeNotFound, nil)
		return
	}

	var matched *upstream.Tool
	for _, t := range sess.Tools() {
		if t.Name == toolName {
			tc := t
			matched = &tc
			break
		}
	}
	if matched == nil {
		writeFail(w, "unknown tool \""+toolName+"\" on upstream \""+upstreamName+"\"", envelope.CodeNotFound, nil)
		return
	}

	key := upstream.Key(upstreamName, toolName)

	// Step 2: enable check.
	if !s.deps.State.IsServerEnabled(upstreamName) || !s.deps.State.IsToolEnabled(key) {
		s.deps.Metrics.RecordError(metrics.ErrorDisabled)
		s.recordAudit(r, upstreamName, toolName, nil, audit.DecisionDeny, "tool disabled", "", requestID, start)
		writeFail(w, "tool \""+key+"\" is disabled", envelope.CodeDisabled, nil)
		return
	}

	// Step 3: protocol-version check. A missing header is treated the same
	// as a mismatched one (spec.md §8 scenario 6: enforce mode blocks a
	// request with no MCP-Protocol-Version header, not just a wrong one).
	if mode := s.deps.Config.Server.ProtocolVersionMode; mode != "off" {
		got := r.Header.Get("MCP-Protocol-Version")
		if got != protocolVersion {
			if mode == "enforce" {
				writeFail(w, "missing or unsupported MCP-Protocol-Version \""+got+"\"", envelope.CodeProtocol, map[string]any{"expected": protocolVersion})
				return
			}
			s.deps.Logger.Warn("protocol version mismatch", "upstream", upstreamName, "tool", toolName, "got", got, "expected", protocolVersion)
		}
	}

	// Step 4: timeout resolution.
	timeout, errEnv := s.resolveTimeout(r)
	if errEnv != nil {
		s.deps.Metrics.RecordError(metrics.ErrorInvalidTimeout)
		writeEnvelope(w, *errEnv)
		return
	}

	args, err := readArgs(r)
	if err != nil {
		writeFail(w, err.Error(), envelope.CodeInvalidJSON, nil)
		return
	}

	if len(matched.InputSchema) > 0 {
		if schema, err := tool.Compile(matched.InputSchema); err == nil {
			if verr := schema.Validate(args); verr != nil {
				writeFail(w, verr.Error(), envelope.CodeInvalid, nil)
				return
			}
		}
	}

	// Supplemented feature: optional per-tool CEL allow_if predicate.
	if s.deps.Policy != nil {
		if expr, configured := s.deps.State.ToolAccessPredicate(key); configured {
			allowed, err := s.deps.Policy.Allow(expr, policy.EvaluationContext{
				ToolName:      toolName,
				ToolArguments: args,
				RequestTime:   time.Now(),
				Gateway:       "mcp-gateway",
			})
			if err != nil || !allowed {
				s.deps.Metrics.RecordError(metrics.ErrorDisabled)
				s.recordAudit(r, upstreamName, toolName, args, audit.DecisionDeny, "denied by access predicate", expr, requestID, start)
				writeFail(w, "tool \""+key+"\" denied by access predicate", envelope.CodeDisabled, nil)
				return
			}
		}
	}

	structured := r.URL.Query().Get("structured_output") == "true"

	// Step 5: dispatch.
	result, err := s.deps.Runner.Execute(r.Context(), sess, toolName, args, timeout)
	if err != nil {
		if ed, ok := err.(*envelope.ErrorDetail); ok {
			s.deps.Metrics.RecordError(codeToMetrics(ed.Code))
			s.recordAudit(r, upstreamName, toolName, args, audit.DecisionAllow, ed.Message, "", requestID, start)
			writeEnvelope(w, envelope.Fail(ed.Message, ed.Code, ed.Data, structured))
			return
		}
		s.deps.Metrics.RecordError(metrics.ErrorUnexpected)
		s.recordAudit(r, upstreamName, toolName, args, audit.DecisionAllow, err.Error(), "", requestID, start)
		writeEnvelope(w, envelope.FailErr(err, structured))
		return
	}

	// Step 6: optional output-schema validation (spec.md §4.2).
	if mode := s.deps.Config.Server.ValidateOutputMode; mode != "off" && len(matched.OutputSchema) > 0 {
		if schema, cerr := tool.Compile(matched.OutputSchema); cerr == nil {
			if verr := schema.Validate(result); verr != nil {
				if mode == "enforce" {
					s.deps.Metrics.RecordError(metrics.ErrorUnexpected)
					s.recordAudit(r, upstreamName, toolName, args, audit.DecisionAllow, "output validation failed: "+verr.Error(), "", requestID, start)
					writeFail(w, "output validation failed: "+verr.Error(), envelope.CodeOutputValidation, nil)
					return
				}
				s.deps.Logger.Warn("output validation failed", "upstream", upstreamName, "tool", toolName, "error", verr)
			}
		}
	}

	// Step 7: classify success into the unified envelope.
	s.recordAudit(r, upstreamName, toolName, args, audit.DecisionAllow, "", "", requestID, start)
	writeEnvelope(w, envelope.Success(result, structured))
}

// recordAudit appends one record to the optional durable audit trail.
// A no-op when no sink is configured.
func (s *Server) recordAudit(r *http.Request, upstreamName, toolName string, args map[string]any, decision, reason, ruleID, requestID string, start time.Time) {
	if s.deps.Audit == nil {
		return
	}
	rec := audit.AuditRecord{
		Timestamp:     start,
		UpstreamName:  upstreamName,
		ToolName:      toolName,
		ToolArguments: audit.RedactSensitiveArgs(args),
		Decision:      decision,
		Reason:        reason,
		RuleID:        ruleID,
		RequestID:     requestID,
		LatencyMicros: time.Since(start).Microseconds(),
	}
	_ = s.deps.Audit.Append(r.Context(), rec)
}

func codeToMetrics(code envelope.Code) metrics.ErrorCode {
	switch code {
	case envelope.CodeTimeout:
		return metrics.ErrorTimeout
	case envelope.CodeDisabled:
		return metrics.ErrorDisabled
	case envelope.CodeInvalidTimeout:
		return metrics.ErrorInvalidTimeout
	default:
		return metrics.ErrorUnexpected
	}
}

// resolveTimeout applies spec.md §4.2 step 4: query `timeout` wins over
// header `X-Tool-Timeout`, else the configured default; both are seconds.
func (s *Server) resolveTimeout(r *http.Request) (time.Duration, *envelope.Envelope) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		raw = r.Header.Get("X-Tool-Timeout")
	}
	if raw == "" {
		return s.deps.TimeoutDefault, nil
	}

	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		env := envelope.Fail("timeout must be numeric", envelope.CodeInvalidTimeout, nil, false)
		return 0, &env
	}

	d := time.Duration(seconds * float64(time.Second))
	if d <= 0 || d > s.deps.TimeoutMax {
		env := envelope.Fail("timeout out of range", envelope.CodeInvalidTimeout, map[string]any{"max": s.deps.TimeoutMax.Seconds()}, false)
		return 0, &env
	}
	return d, nil
}

// readArgs parses the request body as a JSON object of call arguments. An
// empty body is treated as no arguments rather than an error.
func readArgs(r *http.Request) (map[string]any, error) {
	body := io.LimitReader(r.Body, maxSynthBodyBytes+1)
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) > maxSynthBodyBytes {
		return nil, errTooLarge
	}
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	return args, nil
}

var errTooLarge = errBody("request body exceeds 1MiB")

type errBody string

func (e errBody) Error() string { return string(e) }

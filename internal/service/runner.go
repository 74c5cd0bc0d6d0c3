package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpbridge/gateway/internal/domain/envelope"
	"github.com/mcpbridge/gateway/internal/domain/metrics"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/port/outbound"
	"github.com/mcpbridge/gateway/internal/telemetry"
)

var runnerTracer = telemetry.Tracer("mcp-gateway/runner")

// ErrUpstreamNotConnected is returned when Execute is called against a
// session that has no live client (spec.md §4.1 "the gateway route
// remains mounted" even while disconnected).
var ErrUpstreamNotConnected = errors.New("runner: upstream session is not connected")

// Runner is the Runner (C6): it executes one tool call against a
// upstream.Session under a caller-supplied timeout, records metrics, and
// flattens the MCP content list into the envelope's result value
// (spec.md §4.3).
type Runner struct {
	metrics *metrics.Aggregator
}

// NewRunner creates a Runner recording into agg.
func NewRunner(agg *metrics.Aggregator) *Runner {
	return &Runner{metrics: agg}
}

// Execute invokes toolName with args against sess's client, bounded by
// timeout, and returns the flattened result. A returned *envelope.ErrorDetail
// carries CodeTimeout or CodeUnexpected; an unconnected session returns
// ErrUpstreamNotConnected, and upstream tool-level failures (the
// result's IsError bit) surface as a plain error whose message is the
// first content item's text, per spec.md §4.3 "UpstreamError".
func (r *Runner) Execute(ctx context.Context, sess *upstream.Session, toolName string, args map[string]any, timeout time.Duration) (any, error) {
	key := upstream.Key(sess.Name(), toolName)
	start := time.Now()

	ctx, span := runnerTracer.Start(ctx, "runner.execute_tool",
		trace.WithAttributes(
			attribute.String("upstream", sess.Name()),
			attribute.String("tool", toolName),
		))
	defer span.End()

	raw := sess.Client()
	if raw == nil {
		r.metrics.RecordExecution(key, time.Since(start), false)
		span.SetStatus(codes.Error, ErrUpstreamNotConnected.Error())
		return nil, ErrUpstreamNotConnected
	}
	client, ok := raw.(outbound.MCPClient)
	if !ok {
		r.metrics.RecordExecution(key, time.Since(start), false)
		span.SetStatus(codes.Error, ErrUpstreamNotConnected.Error())
		return nil, ErrUpstreamNotConnected
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := client.CallTool(callCtx, toolName, args)
	elapsed := time.Since(start)

	if err != nil {
		r.metrics.RecordExecution(key, elapsed, false)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			span.SetStatus(codes.Error, "timeout")
			return nil, &envelope.ErrorDetail{Message: fmt.Sprintf("tool %q timed out after %s", toolName, timeout), Code: envelope.CodeTimeout}
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, &envelope.ErrorDetail{Message: err.Error(), Code: envelope.CodeUnexpected}
	}

	if result.IsError {
		r.metrics.RecordExecution(key, elapsed, false)
		msg := firstText(result.Content)
		span.SetStatus(codes.Error, msg)
		return nil, errors.New(msg)
	}

	r.metrics.RecordExecution(key, elapsed, true)
	return flattenContent(result.Content), nil
}

func firstText(blocks []outbound.ContentBlock) string {
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			return b.Text
		}
	}
	return "tool call failed"
}

// flattenContent implements spec.md §4.3's content-list flattening: text
// items that parse as JSON are unquoted to structured values; image items
// become {kind:image, mimeType, data}; resource items become
// {kind:resource, uri}; anything else stringifies. A single item is
// returned unwrapped; more than one item is returned as a list.
func flattenContent(blocks []outbound.ContentBlock) any {
	items := make([]any, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, flattenOne(b))
	}
	if len(items) == 1 {
		return items[0]
	}
	return items
}

func flattenOne(b outbound.ContentBlock) any {
	switch b.Type {
	case "text":
		var v any
		if err := json.Unmarshal([]byte(b.Text), &v); err == nil {
			return v
		}
		return b.Text
	case "image":
		return map[string]any{"kind": "image", "mimeType": b.MimeType, "data": b.Data}
	case "resource":
		return map[string]any{"kind": "resource", "uri": b.URI}
	default:
		return b.Text
	}
}

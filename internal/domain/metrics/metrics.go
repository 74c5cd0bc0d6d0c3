// Package metrics implements the gateway's in-process metrics aggregator
// (spec.md §3 MetricsState, §4.x, C11): a top-level call/error counter plus
// per-tool call/latency/error counters, grounded on the original runner's
// and metrics aggregator's exact arithmetic.
package metrics

import (
	"sync"
	"time"
)

// ErrorCode is one of the four top-level error buckets the HTTP layer
// tracks, independent of per-tool error counts (spec.md §7).
type ErrorCode string

const (
	ErrorDisabled       ErrorCode = "disabled"
	ErrorInvalidTimeout ErrorCode = "invalid_timeout"
	ErrorTimeout        ErrorCode = "timeout"
	ErrorUnexpected     ErrorCode = "unexpected"
)

// ToolMetrics is one tool's running execution statistics.
type ToolMetrics struct {
	Calls        int64   `json:"calls"`
	TotalLatency float64 `json:"totalLatency"` // seconds
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	Errors       int64   `json:"errors"`
}

// Aggregator is the process-wide metrics sink: a top-level call counter
// and error-by-code breakdown (recorded at the HTTP layer, including
// pre-execution failures), plus per-tool stats recorded at execution time.
type Aggregator struct {
	mu           sync.Mutex
	callsTotal   int64
	errorsByCode map[ErrorCode]int64
	perTool      map[string]*ToolMetrics
}

// New creates an empty Aggregator with all four error buckets pre-seeded
// at zero, matching the original's fixed key set.
func New() *Aggregator {
	return &Aggregator{
		errorsByCode: map[ErrorCode]int64{
			ErrorDisabled:       0,
			ErrorInvalidTimeout: 0,
			ErrorTimeout:        0,
			ErrorUnexpected:     0,
		},
		perTool: make(map[string]*ToolMetrics),
	}
}

// RecordCall increments the top-level call counter. Called once per
// inbound HTTP request, regardless of outcome.
func (a *Aggregator) RecordCall() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callsTotal++
}

// RecordError increments the named bucket; an unrecognized code is folded
// into ErrorUnexpected.
func (a *Aggregator) RecordError(code ErrorCode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.errorsByCode[code]; !ok {
		code = ErrorUnexpected
	}
	a.errorsByCode[code]++
}

// RecordExecution updates a tool's call/latency/error counters after one
// invocation finished in d, succeeding or not.
func (a *Aggregator) RecordExecution(toolKey string, d time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.perTool[toolKey]
	if !ok {
		m = &ToolMetrics{}
		a.perTool[toolKey] = m
	}
	m.Calls++
	m.TotalLatency += d.Seconds()
	m.AvgLatencyMs = (m.TotalLatency / float64(m.Calls)) * 1000
	if !success {
		m.Errors++
	}
}

// Reset zeroes the top-level counters and clears per-tool metrics.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callsTotal = 0
	for k := range a.errorsByCode {
		a.errorsByCode[k] = 0
	}
	a.perTool = make(map[string]*ToolMetrics)
}

// Snapshot is the consolidated metrics payload served at /_meta/metrics.
type Snapshot struct {
	Calls   int64                   `json:"calls"`
	Errors  ErrorsSnapshot          `json:"errors"`
	PerTool map[string]*ToolMetrics `json:"perTool"`
}

// ErrorsSnapshot carries the total (sum of byCode) alongside the
// breakdown, matching the original's build_metrics invariant that
// errors.total always equals the sum of errors.byCode.
type ErrorsSnapshot struct {
	Total  int64               `json:"total"`
	ByCode map[ErrorCode]int64 `json:"byCode"`
}

// Build returns a consolidated, race-free snapshot.
func (a *Aggregator) Build() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	byCode := make(map[ErrorCode]int64, len(a.errorsByCode))
	var total int64
	for k, v := range a.errorsByCode {
		byCode[k] = v
		total += v
	}

	perTool := make(map[string]*ToolMetrics, len(a.perTool))
	for k, v := range a.perTool {
		cp := *v
		perTool[k] = &cp
	}

	return Snapshot{
		Calls:   a.callsTotal,
		Errors:  ErrorsSnapshot{Total: total, ByCode: byCode},
		PerTool: perTool,
	}
}

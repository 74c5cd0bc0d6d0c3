package metrics

import (
	"testing"
	"time"
)

func TestRecordCallAndError(t *testing.T) {
	a := New()
	a.RecordCall()
	a.RecordCall()
	a.RecordError(ErrorTimeout)
	a.RecordError(ErrorDisabled)
	a.RecordError("bogus")

	snap := a.Build()
	if snap.Calls != 2 {
		t.Errorf("expected 2 calls, got %d", snap.Calls)
	}
	if snap.Errors.Total != 3 {
		t.Errorf("expected errors.total to equal sum of byCode, got %d", snap.Errors.Total)
	}
	if snap.Errors.ByCode[ErrorUnexpected] != 1 {
		t.Errorf("expected unknown code folded into unexpected, got %d", snap.Errors.ByCode[ErrorUnexpected])
	}
}

func TestRecordExecutionComputesAvgLatencyMs(t *testing.T) {
	a := New()
	a.RecordExecution("weather/lookup", 100*time.Millisecond, true)
	a.RecordExecution("weather/lookup", 300*time.Millisecond, false)

	snap := a.Build()
	m := snap.PerTool["weather/lookup"]
	if m == nil {
		t.Fatalf("expected per-tool metrics for weather/lookup")
	}
	if m.Calls != 2 {
		t.Errorf("expected 2 calls, got %d", m.Calls)
	}
	if m.Errors != 1 {
		t.Errorf("expected 1 error, got %d", m.Errors)
	}
	wantAvg := 200.0 // (0.1+0.3)/2 * 1000
	if diff := m.AvgLatencyMs - wantAvg; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected avgLatencyMs %.3f, got %.3f", wantAvg, m.AvgLatencyMs)
	}
}

func TestReset(t *testing.T) {
	a := New()
	a.RecordCall()
	a.RecordError(ErrorTimeout)
	a.RecordExecution("t", time.Second, true)

	a.Reset()

	snap := a.Build()
	if snap.Calls != 0 || snap.Errors.Total != 0 || len(snap.PerTool) != 0 {
		t.Errorf("expected reset to clear all counters, got %+v", snap)
	}
}

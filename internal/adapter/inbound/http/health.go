package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/mcpbridge/gateway/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// HealthChecker reports liveness of the upstream supervisor and the
// enable-state store. A degraded upstream never marks the gateway
// unhealthy (spec.md §4.1 "the gateway route remains mounted" even while
// disconnected); the state-store check takes a snapshot and reports "ok".
// No check currently sets the status to "unhealthy".
type HealthChecker struct {
	supervisor *service.Supervisor
	state      *service.StateManager
	version    string
}

// NewHealthChecker creates a HealthChecker. Pass nil for components not
// wired in this deployment (e.g. a raw-MCP-only process with no supervisor).
func NewHealthChecker(supervisor *service.Supervisor, state *service.StateManager, version string) *HealthChecker {
	return &HealthChecker{supervisor: supervisor, state: state, version: version}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.supervisor != nil {
		sessions := h.supervisor.Sessions()
		connected := 0
		for _, s := range sessions {
			if s.Connected() {
				connected++
			}
		}
		checks["upstreams"] = fmt.Sprintf("%d/%d connected", connected, len(sessions))
	} else {
		checks["upstreams"] = "not configured"
	}

	if h.state != nil {
		// Snapshot acquires the state manager's lock; if this hangs or
		// panics the underlying store is unusable.
		_ = h.state.Snapshot()
		checks["state_store"] = "ok"
	} else {
		checks["state_store"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable) // 503
		} else {
			w.WriteHeader(http.StatusOK) // 200
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

package api

import (
	"net/http"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// healthzServer is one entry of the /healthz "servers" map.
type healthzServer struct {
	Connected bool              `json:"connected"`
	Type      upstream.Transport `json:"type"`
}

// healthzResponse is spec.md §6's exact /healthz shape.
type healthzResponse struct {
	Status     string                   `json:"status"`
	Generation int                      `json:"generation"`
	LastReload string                   `json:"lastReload"`
	Servers    map[string]healthzServer `json:"servers"`
}

// handleHealthz reports the current reload generation and every mounted
// session's connection state, regardless of whether any upstream is
// actually up — a fully disconnected fleet is still "ok" here, since the
// gateway itself is serving (spec.md §4.1 "disconnected-but-routed
// placeholder").
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	gen, lastReload := s.deps.Supervisor.Generation()

	servers := make(map[string]healthzServer)
	for _, sess := range s.deps.Supervisor.Sessions() {
		servers[sess.Name()] = healthzServer{
			Connected: sess.Connected(),
			Type:      sess.Config().Transport,
		}
	}

	resp := healthzResponse{
		Status:     "ok",
		Generation: gen,
		Servers:    servers,
	}
	if !lastReload.IsZero() {
		resp.LastReload = lastReload.UTC().Format(httpTimeFormat)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSON(w, resp)
}

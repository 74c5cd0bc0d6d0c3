package api

import (
	"net/http"

	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.deps.Metrics.Build())
}

// statusResponse extends /healthz with process-level fields an admin UI
// cares about but a load-balancer health probe doesn't need.
type statusResponse struct {
	healthzResponse
	Version  string `json:"version"`
	ReadOnly bool   `json:"readOnly"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	gen, lastReload := s.deps.Supervisor.Generation()
	servers := make(map[string]healthzServer)
	for _, sess := range s.deps.Supervisor.Sessions() {
		servers[sess.Name()] = healthzServer{Connected: sess.Connected(), Type: sess.Config().Transport}
	}

	resp := statusResponse{
		healthzResponse: healthzResponse{Status: "ok", Generation: gen, Servers: servers},
		Version:         s.deps.Version,
		ReadOnly:        s.deps.Config.Server.ReadOnly,
	}
	if !lastReload.IsZero() {
		resp.LastReload = lastReload.UTC().Format(httpTimeFormat)
	}
	writeOK(w, resp)
}

// statsResponse aggregates counts an admin dashboard renders at a glance:
// how many upstreams/tools are mounted vs. connected vs. enabled, plus the
// live session count.
type statsResponse struct {
	Servers          int `json:"servers"`
	ServersConnected int `json:"serversConnected"`
	Tools            int `json:"tools"`
	ToolsEnabled     int `json:"toolsEnabled"`
	ChatSessions     int `json:"chatSessions"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats statsResponse
	for _, sess := range s.deps.Supervisor.Sessions() {
		stats.Servers++
		if sess.Connected() {
			stats.ServersConnected++
		}
		for _, t := range sess.Tools() {
			stats.Tools++
			if s.deps.State.IsToolEnabled(upstream.Key(sess.Name(), t.Name)) {
				stats.ToolsEnabled++
			}
		}
	}
	if s.deps.Sessions != nil {
		stats.ChatSessions = s.deps.Sessions.Len()
	}
	writeOK(w, stats)
}
